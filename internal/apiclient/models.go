package apiclient

import (
	"encoding/json"
	"time"
)

// User is the account returned by the auth endpoints.
type User struct {
	ID             int    `json:"id"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role,omitempty"`
	OrganizationID *int   `json:"organization_id,omitempty"`
}

// TeacherLoginRequest is the body of a teacher login.
type TeacherLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TeacherRegisterRequest is the body of a teacher registration.
type TeacherRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// StudentLoginRequest is the body of a student login.
type StudentLoginRequest struct {
	Email string `json:"email"`
	// Password defaults to the birthdate (YYYY-MM-DD) entered by the teacher.
	Password string `json:"password"`
}

// AuthResponse is returned by every login and register call.
type AuthResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
}

// DecodeUser decodes the user object of the response.
func (r *AuthResponse) DecodeUser() (*User, error) {
	if len(r.User) == 0 {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal(r.User, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Classroom is a teacher's class.
type Classroom struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Level        string     `json:"level,omitempty"`
	StudentCount int        `json:"student_count,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// ClassroomInput creates or updates a classroom.
type ClassroomInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Level       string `json:"level,omitempty"`
}

// Student is a member of a classroom.
type Student struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}

// StudentInput adds a student to a classroom.
type StudentInput struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Birthdate string `json:"birthdate"`
	StudentID string `json:"student_id,omitempty"`
}

// Program is a curriculum made of ordered lessons.
type Program struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Level       string   `json:"level,omitempty"`
	ClassroomID *int     `json:"classroom_id,omitempty"`
	Lessons     []Lesson `json:"lessons,omitempty"`
}

// ProgramInput creates or updates a program.
type ProgramInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Level       string `json:"level,omitempty"`
	ClassroomID *int   `json:"classroom_id,omitempty"`
}

// Lesson is an ordered unit of a program.
type Lesson struct {
	ID          int       `json:"id"`
	ProgramID   int       `json:"program_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OrderIndex  int       `json:"order_index"`
	Contents    []Content `json:"contents,omitempty"`
}

// LessonInput creates or updates a lesson.
type LessonInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OrderIndex  *int   `json:"order_index,omitempty"`
}

// Content is an ordered activity of a lesson, holding the items a student records.
type Content struct {
	ID         int           `json:"id"`
	LessonID   int           `json:"lesson_id"`
	Type       string        `json:"type"`
	Title      string        `json:"title"`
	OrderIndex int           `json:"order_index"`
	Items      []ContentItem `json:"items,omitempty"`
}

// ContentItem is one question of a content, e.g. a sentence to read aloud.
type ContentItem struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	OrderIndex  int    `json:"order_index"`
}

// ContentInput creates or updates a content.
type ContentInput struct {
	Type  string             `json:"type"`
	Title string             `json:"title"`
	Items []ContentItemInput `json:"items,omitempty"`
}

// ContentItemInput is one item of a ContentInput.
type ContentItemInput struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// ReorderItem moves one lesson or content to a new position.
type ReorderItem struct {
	ID         int `json:"id"`
	OrderIndex int `json:"order_index"`
}

// Assignment is a set of contents given to a classroom.
type Assignment struct {
	ID          int        `json:"id"`
	ClassroomID int        `json:"classroom_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ContentIDs  []int      `json:"content_ids,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// AssignmentInput creates or updates an assignment.
type AssignmentInput struct {
	ClassroomID int        `json:"classroom_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ContentIDs  []int      `json:"content_ids,omitempty"`
	StudentIDs  []int      `json:"student_ids,omitempty"`
}

// StudentAssignment is an assignment as seen by a student, with their progress.
type StudentAssignment struct {
	ID           int        `json:"id"`
	AssignmentID int        `json:"assignment_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Score        *float64   `json:"score,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	Contents     []Content  `json:"contents,omitempty"`
}

// StaffMember is an organization staff account.
type StaffMember struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

// StaffInvite invites a new staff member.
type StaffInvite struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// MessageResponse is the body of calls that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}
