package entity

import "time"

// User is the local record of an authenticated principal. Rows are created
// on first write by that principal.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:128"`
	Email     string    `json:"email,omitempty" gorm:"size:256"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// All returns every model for migration, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Machine{},
		&NCProgram{},
		&ProgramVersion{},
		&ProgramFile{},
		&SetupSheet{},
		&Tool{},
		&OriginOffset{},
		&Fixture{},
		&Media{},
	}
}
