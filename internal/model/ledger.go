package model

import "time"

type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusSuspended StudentStatus = "suspended"
)

type EnrollmentStatus string

const (
	EnrollmentStatusPlanned    EnrollmentStatus = "planned"
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
)

type CertificateStatus string

const (
	CertificateStatusUnready         CertificateStatus = "unready"
	CertificateStatusConditionally   CertificateStatus = "conditionally"
	CertificateStatusControlReceived CertificateStatus = "control_received"
	CertificateStatusInProgress      CertificateStatus = "in_progress"
	CertificateStatusCompleted       CertificateStatus = "completed"
)

func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusUnready, CertificateStatusConditionally, CertificateStatusControlReceived,
		CertificateStatusInProgress, CertificateStatusCompleted:
		return true
	}
	return false
}

// ResultTypeName is the assessment type of a course's final grade.
const ResultTypeName = "Result"

type Session struct {
	ID            int64 `json:"id" db:"id"`
	SessionNumber int   `json:"session_number" db:"session_number"`
}

type Course struct {
	ID          int64  `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	SessionID   int64  `json:"session_id" db:"session_id"`
}

type AssessmentType struct {
	ID     int64    `json:"id" db:"id"`
	Name   string   `json:"name" db:"name"`
	Weight *float64 `json:"weight,omitempty" db:"weight"`
}

type Student struct {
	ID        int64         `json:"id" db:"id"`
	FullName  string        `json:"full_name" db:"full_name"`
	Email     *string       `json:"email,omitempty" db:"email"`
	StartDate time.Time     `json:"start_date" db:"start_date"`
	Status    StudentStatus `json:"status" db:"status"`
}

type Enrollment struct {
	ID         int64            `json:"id" db:"id"`
	StudentID  int64            `json:"student_id" db:"student_id"`
	SessionID  int64            `json:"session_id" db:"session_id"`
	EnrolledOn time.Time        `json:"enrolled_on" db:"enrolled_on"`
	Status     EnrollmentStatus `json:"status" db:"status"`
}

type Attendance struct {
	ID           int64 `json:"id" db:"id"`
	EnrollmentID int64 `json:"enrollment_id" db:"enrollment_id"`
	SessionID    int64 `json:"session_id" db:"session_id"`
	Present      bool  `json:"present" db:"present"`
}

type Assessment struct {
	ID                int64     `json:"id" db:"id"`
	EnrollmentID      int64     `json:"enrollment_id" db:"enrollment_id"`
	CourseID          int64     `json:"course_id" db:"course_id"`
	TypeID            int64     `json:"type_id" db:"type_id"`
	Score             float64   `json:"score" db:"score"`
	Date              time.Time `json:"date" db:"date"`
	CertificateIssued bool      `json:"certificate_issued" db:"certificate_issued"`
	IsFinalGrade      bool      `json:"is_final_grade" db:"is_final_grade"`
}

type Certificate struct {
	ID           int64             `json:"id" db:"id"`
	StudentID    int64             `json:"student_id" db:"student_id"`
	CourseID     int64             `json:"course_id" db:"course_id"`
	AssessmentID *int64            `json:"assessment_id,omitempty" db:"assessment_id"`
	IssuedOn     time.Time         `json:"issued_on" db:"issued_on"`
	Status       CertificateStatus `json:"status" db:"status"`
}

type Statistic struct {
	ID               int64 `json:"id" db:"id"`
	StudentID        int64 `json:"student_id" db:"student_id"`
	TotalCourses     int   `json:"total_courses" db:"total_courses"`
	Certified        int   `json:"certified" db:"certified"`
	Uncertified      int   `json:"uncertified" db:"uncertified"`
	SessionsMissed   int   `json:"sessions_missed" db:"sessions_missed"`
	SessionsAttended int   `json:"sessions_attended" db:"sessions_attended"`
	SessionsLate     int   `json:"sessions_late" db:"sessions_late"`
}
