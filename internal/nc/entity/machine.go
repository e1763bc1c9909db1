package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Machine states
const (
	MachineStatusOnline      = "Online"
	MachineStatusOffline     = "Offline"
	MachineStatusMaintenance = "Maintenance"
)

// DefaultProgramNumber is the first auto-number a new machine hands out.
const DefaultProgramNumber = 100

// Machine is a CNC machine on the shop floor. NextProgramNumber is the
// counter consumed by program auto-numbering; it only ever moves up.
type Machine struct {
	ID                string            `json:"id" gorm:"primaryKey;size:36"`
	Name              string            `json:"name" gorm:"size:128;not null"`
	Type              string            `json:"type" gorm:"size:64;not null"`
	Manufacturer      string            `json:"manufacturer,omitempty" gorm:"size:128"`
	Model             string            `json:"model,omitempty" gorm:"size:128"`
	Status            string            `json:"status" gorm:"size:16;not null;default:Offline"`
	IPAddress         string            `json:"ipAddress,omitempty" gorm:"size:64"`
	SerialPort        string            `json:"serialPort,omitempty" gorm:"size:64"`
	Capabilities      datatypes.JSONMap `json:"capabilities,omitempty"`
	NextProgramNumber int               `json:"nextProgramNumber" gorm:"not null;default:100"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`

	// Filled by list/detail queries only.
	ProgramCount int64 `json:"programCount" gorm:"->;-:migration"`

	Programs []NCProgram `json:"programs,omitempty" gorm:"foreignKey:MachineID"`
}

func (Machine) TableName() string {
	return "machines"
}

// ValidMachineStatus reports whether s is a known machine state.
func ValidMachineStatus(s string) bool {
	switch s {
	case MachineStatusOnline, MachineStatusOffline, MachineStatusMaintenance:
		return true
	}
	return false
}
