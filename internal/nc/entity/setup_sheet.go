package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Media kinds
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// SetupSheet documents how to set a machine up for a program. Its four
// child collections are always written as a unit.
type SetupSheet struct {
	ID               string                      `json:"id" gorm:"primaryKey;size:36"`
	ProgramID        string                      `json:"programId" gorm:"size:36;not null;index"`
	MachineID        string                      `json:"machineId" gorm:"size:36;not null;index"`
	MachineType      string                      `json:"machineType" gorm:"size:64"`
	SafetyChecklist  datatypes.JSONSlice[string] `json:"safetyChecklist"`
	CreatedByID      string                      `json:"createdById" gorm:"size:64;not null"`
	ApprovedByID     *string                     `json:"approvedById,omitempty" gorm:"size:64"`
	ApprovedAt       *time.Time                  `json:"approvedAt,omitempty"`
	ApprovalComments string                      `json:"approvalComments,omitempty" gorm:"type:text"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`

	Program       *NCProgram     `json:"program,omitempty" gorm:"foreignKey:ProgramID"`
	Machine       *Machine       `json:"machine,omitempty" gorm:"foreignKey:MachineID"`
	CreatedBy     *User          `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`
	ApprovedBy    *User          `json:"approvedBy,omitempty" gorm:"foreignKey:ApprovedByID"`
	Tools         []Tool         `json:"tools" gorm:"foreignKey:SetupSheetID"`
	OriginOffsets []OriginOffset `json:"originOffsets" gorm:"foreignKey:SetupSheetID"`
	Fixtures      []Fixture      `json:"fixtures" gorm:"foreignKey:SetupSheetID"`
	Media         []Media        `json:"media" gorm:"foreignKey:SetupSheetID"`
}

func (SetupSheet) TableName() string {
	return "setup_sheets"
}

type Tool struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	SetupSheetID string  `json:"setupSheetId" gorm:"size:36;not null;index"`
	ToolNumber   int     `json:"toolNumber" gorm:"not null"`
	ToolName     string  `json:"toolName" gorm:"size:128;not null"`
	Length       float64 `json:"length"`
	OffsetH      int     `json:"offsetH"`
	OffsetD      int     `json:"offsetD"`
	Comment      string  `json:"comment,omitempty" gorm:"size:512"`
}

func (Tool) TableName() string {
	return "setup_tools"
}

// OriginOffset is a work coordinate system such as G54.
type OriginOffset struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	SetupSheetID string  `json:"setupSheetId" gorm:"size:36;not null;index"`
	Name         string  `json:"name" gorm:"size:32;not null"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
	A            float64 `json:"a"`
	B            float64 `json:"b"`
	C            float64 `json:"c"`
}

func (OriginOffset) TableName() string {
	return "setup_origin_offsets"
}

type Fixture struct {
	ID               string `json:"id" gorm:"primaryKey;size:36"`
	SetupSheetID     string `json:"setupSheetId" gorm:"size:36;not null;index"`
	FixtureID        string `json:"fixtureId" gorm:"size:64;not null"`
	Quantity         int    `json:"quantity" gorm:"not null;default:1"`
	SetupDescription string `json:"setupDescription,omitempty" gorm:"type:text"`
}

func (Fixture) TableName() string {
	return "setup_fixtures"
}

type Media struct {
	ID           string                      `json:"id" gorm:"primaryKey;size:36"`
	SetupSheetID string                      `json:"setupSheetId" gorm:"size:36;not null;index"`
	Type         string                      `json:"type" gorm:"size:8;not null"`
	URL          string                      `json:"url" gorm:"size:512;not null"`
	Caption      string                      `json:"caption,omitempty" gorm:"size:512"`
	Annotations  datatypes.JSONSlice[string] `json:"annotations"`
	Order        int                         `json:"order" gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time                   `json:"createdAt"`
}

func (Media) TableName() string {
	return "setup_media"
}
