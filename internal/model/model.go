package model

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

const (
	PaymentModeOnline  = "online"
	PaymentModeOffline = "offline"
)

type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	Role             string
	Standard         string
	UID              string
	IsVerified       bool
	TransportEnabled bool
	PickupPoint      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BillingStudent is the roster projection the fee generation job works from.
type BillingStudent struct {
	ID               string
	Standard         string
	TransportEnabled bool
	PickupPoint      string
}

type Batch struct {
	ID          string
	Name        string
	TeacherID   string
	TeacherName string
	JoiningCode string
	Standard    string
	StudentIDs  []string
	CreatedAt   time.Time
}

type BatchSummary struct {
	ID           string
	Name         string
	Standard     string
	JoiningCode  string
	TeacherName  string
	StudentCount int
}

type Assignment struct {
	ID        string
	BatchIDs  []string
	FileURLs  []string
	BatchName string
	CreatedAt time.Time
}

type FeeEntry struct {
	ID        string
	StudentID string
	Amount    int64
	Period    string
	Paid      bool
	Mode      *string
	OrderID   *string
	PaymentID *string
	PaidAt    *time.Time
	CreatedAt time.Time
}

type Event struct {
	ID          string
	Title       string
	Description string
	Date        string
	ImageURL    string
	Public      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserCounts struct {
	Total    int64
	Teachers int64
	Students int64
	Verified int64
}
