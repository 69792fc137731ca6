package apiclient

import (
	"context"
	"fmt"
)

// ListAssignments returns the assignments of a classroom.
func (c *Client) ListAssignments(ctx context.Context, classroomID int) ([]Assignment, error) {
	var out []Assignment
	endpoint := fmt.Sprintf("/api/teachers/classrooms/%d/assignments", classroomID)
	if err := c.Get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAssignment returns one assignment.
func (c *Client) GetAssignment(ctx context.Context, id int) (*Assignment, error) {
	var out Assignment
	if err := c.Get(ctx, fmt.Sprintf("/api/teachers/assignments/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAssignment assigns contents to a classroom.
func (c *Client) CreateAssignment(ctx context.Context, in AssignmentInput) (*Assignment, error) {
	var out Assignment
	if err := c.Post(ctx, "/api/teachers/assignments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAssignment patches an assignment.
func (c *Client) UpdateAssignment(ctx context.Context, id int, in AssignmentInput) (*Assignment, error) {
	var out Assignment
	if err := c.Patch(ctx, fmt.Sprintf("/api/teachers/assignments/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStudentAssignments returns the signed-in student's assignments.
func (c *Client) ListStudentAssignments(ctx context.Context) ([]StudentAssignment, error) {
	var out []StudentAssignment
	if err := c.Get(ctx, "/api/students/assignments", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStudentAssignment returns one of the signed-in student's assignments with its contents.
func (c *Client) GetStudentAssignment(ctx context.Context, id int) (*StudentAssignment, error) {
	var out StudentAssignment
	if err := c.Get(ctx, fmt.Sprintf("/api/students/assignments/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitStudentAssignment marks the student's assignment as submitted.
func (c *Client) SubmitStudentAssignment(ctx context.Context, id int) (*StudentAssignment, error) {
	var out StudentAssignment
	if err := c.Post(ctx, fmt.Sprintf("/api/students/assignments/%d/submit", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
