package apiclient

import (
	"context"
	"fmt"
)

const classroomsPath = "/api/teachers/classrooms"

// ListClassrooms returns the teacher's classrooms.
func (c *Client) ListClassrooms(ctx context.Context) ([]Classroom, error) {
	var out []Classroom
	if err := c.Get(ctx, classroomsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetClassroom returns one classroom.
func (c *Client) GetClassroom(ctx context.Context, id int) (*Classroom, error) {
	var out Classroom
	if err := c.Get(ctx, fmt.Sprintf("%s/%d", classroomsPath, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClassroom creates a classroom.
func (c *Client) CreateClassroom(ctx context.Context, in ClassroomInput) (*Classroom, error) {
	var out Classroom
	if err := c.Post(ctx, classroomsPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateClassroom replaces a classroom's editable fields.
func (c *Client) UpdateClassroom(ctx context.Context, id int, in ClassroomInput) (*Classroom, error) {
	var out Classroom
	if err := c.Put(ctx, fmt.Sprintf("%s/%d", classroomsPath, id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClassroom deletes a classroom.
func (c *Client) DeleteClassroom(ctx context.Context, id int) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%d", classroomsPath, id), nil)
}

// ListClassroomStudents returns the students of a classroom.
func (c *Client) ListClassroomStudents(ctx context.Context, classroomID int) ([]Student, error) {
	var out []Student
	if err := c.Get(ctx, fmt.Sprintf("%s/%d/students", classroomsPath, classroomID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddClassroomStudents adds students to a classroom in one batch.
func (c *Client) AddClassroomStudents(ctx context.Context, classroomID int, students []StudentInput) ([]Student, error) {
	body := map[string]any{"students": students}
	var out []Student
	if err := c.Post(ctx, fmt.Sprintf("%s/%d/students", classroomsPath, classroomID), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
