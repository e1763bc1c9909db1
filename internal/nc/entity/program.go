package entity

import "time"

// Program workflow states
const (
	ProgramStatusDraft    = "Draft"
	ProgramStatusInReview = "In Review"
	ProgramStatusApproved = "Approved"
	ProgramStatusReleased = "Released"
	ProgramStatusObsolete = "Obsolete"
)

// NCProgram is a G-code program for one machine.
type NCProgram struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	Name          string     `json:"name" gorm:"size:256;not null"`
	PartNumber    string     `json:"partNumber" gorm:"size:64;not null;index"`
	Revision      string     `json:"revision" gorm:"size:32;not null"`
	MachineID     string     `json:"machineId" gorm:"size:36;not null;index"`
	Operation     string     `json:"operation" gorm:"size:128;not null"`
	Material      string     `json:"material" gorm:"size:128;not null"`
	Customer      string     `json:"customer" gorm:"size:128;not null;index"`
	WorkOrder     string     `json:"workOrder,omitempty" gorm:"size:64"`
	Description   string     `json:"description,omitempty" gorm:"type:text"`
	Status        string     `json:"status" gorm:"size:16;not null;default:Draft;index"`
	AuthorID      string     `json:"authorId" gorm:"size:64;not null;index"`
	ApproverID    *string    `json:"approverId,omitempty" gorm:"size:64"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
	NCCode        string     `json:"ncCode,omitempty" gorm:"type:text"`
	HasSetupSheet bool       `json:"hasSetupSheet" gorm:"not null;default:false"`
	LastModified  time.Time  `json:"lastModified" gorm:"autoUpdateTime;index"`
	CreatedAt     time.Time  `json:"createdAt"`

	Machine     *Machine         `json:"machine,omitempty" gorm:"foreignKey:MachineID"`
	Author      *User            `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Approver    *User            `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
	Versions    []ProgramVersion `json:"versions,omitempty" gorm:"foreignKey:ProgramID"`
	SetupSheets []SetupSheet     `json:"setupSheets,omitempty" gorm:"foreignKey:ProgramID"`
	Files       []ProgramFile    `json:"files,omitempty" gorm:"foreignKey:ProgramID"`
}

func (NCProgram) TableName() string {
	return "nc_programs"
}

// ValidProgramStatus reports whether s is a known workflow state.
func ValidProgramStatus(s string) bool {
	switch s {
	case ProgramStatusDraft, ProgramStatusInReview, ProgramStatusApproved,
		ProgramStatusReleased, ProgramStatusObsolete:
		return true
	}
	return false
}

// IsApprovedStatus is true for the states that carry an approval stamp.
func IsApprovedStatus(s string) bool {
	return s == ProgramStatusApproved || s == ProgramStatusReleased
}

// ProgramVersion is an immutable snapshot of a program's NC file.
type ProgramVersion struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	ProgramID     string    `json:"programId" gorm:"size:36;not null;uniqueIndex:idx_program_version_number"`
	VersionNumber int       `json:"versionNumber" gorm:"not null;uniqueIndex:idx_program_version_number"`
	Revision      string    `json:"revision" gorm:"size:32;not null"`
	FilePath      string    `json:"filePath" gorm:"size:512;not null"`
	ChangeLog     string    `json:"changeLog,omitempty" gorm:"type:text"`
	CreatedByID   string    `json:"createdById" gorm:"size:64;not null"`
	CreatedAt     time.Time `json:"createdAt"`

	CreatedBy *User `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`
}

func (ProgramVersion) TableName() string {
	return "program_versions"
}

// Program file categories, one directory each in the file store.
const (
	FileCategoryNC       = "nc"
	FileCategoryCAD      = "cad"
	FileCategoryDXF      = "dxf"
	FileCategoryMedia    = "media"
	FileCategoryDocument = "documents"
	FileCategoryVersions = "versions"
)

// ProgramFile is an uploaded attachment (NC source, CAD model, DXF, document).
type ProgramFile struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ProgramID    string    `json:"programId" gorm:"size:36;not null;index"`
	Category     string    `json:"category" gorm:"size:16;not null"`
	FileName     string    `json:"fileName" gorm:"size:256;not null"`
	StoredName   string    `json:"storedName" gorm:"size:256;not null"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty" gorm:"size:128"`
	URL          string    `json:"url" gorm:"size:512;not null"`
	UploadedByID string    `json:"uploadedById" gorm:"size:64;not null"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (ProgramFile) TableName() string {
	return "program_files"
}
