package apiclient

import (
	"context"
	"fmt"
)

const programsPath = "/api/teachers/programs"

// ListPrograms returns the teacher's programs.
func (c *Client) ListPrograms(ctx context.Context) ([]Program, error) {
	var out []Program
	if err := c.Get(ctx, programsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProgram returns a program with its lessons and contents.
func (c *Client) GetProgram(ctx context.Context, id int) (*Program, error) {
	var out Program
	if err := c.Get(ctx, fmt.Sprintf("%s/%d", programsPath, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProgram creates a program.
func (c *Client) CreateProgram(ctx context.Context, in ProgramInput) (*Program, error) {
	var out Program
	if err := c.Post(ctx, programsPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProgram updates a program.
func (c *Client) UpdateProgram(ctx context.Context, id int, in ProgramInput) (*Program, error) {
	var out Program
	if err := c.Put(ctx, fmt.Sprintf("%s/%d", programsPath, id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProgram deletes a program and everything under it.
func (c *Client) DeleteProgram(ctx context.Context, id int) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%d", programsPath, id), nil)
}

// CreateLesson adds a lesson to a program.
func (c *Client) CreateLesson(ctx context.Context, programID int, in LessonInput) (*Lesson, error) {
	var out Lesson
	if err := c.Post(ctx, fmt.Sprintf("%s/%d/lessons", programsPath, programID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLesson updates a lesson.
func (c *Client) UpdateLesson(ctx context.Context, programID, lessonID int, in LessonInput) (*Lesson, error) {
	var out Lesson
	if err := c.Put(ctx, fmt.Sprintf("%s/%d/lessons/%d", programsPath, programID, lessonID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLesson deletes a lesson.
func (c *Client) DeleteLesson(ctx context.Context, programID, lessonID int) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%d/lessons/%d", programsPath, programID, lessonID), nil)
}

// ReorderLessons sets the order of a program's lessons.
func (c *Client) ReorderLessons(ctx context.Context, programID int, order []ReorderItem) error {
	return c.Put(ctx, fmt.Sprintf("%s/%d/lessons/reorder", programsPath, programID), order, nil)
}

// CreateContent adds a content to a lesson.
func (c *Client) CreateContent(ctx context.Context, lessonID int, in ContentInput) (*Content, error) {
	var out Content
	if err := c.Post(ctx, fmt.Sprintf("/api/teachers/lessons/%d/contents", lessonID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateContent updates a content.
func (c *Client) UpdateContent(ctx context.Context, contentID int, in ContentInput) (*Content, error) {
	var out Content
	if err := c.Put(ctx, fmt.Sprintf("/api/teachers/contents/%d", contentID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContent deletes a content.
func (c *Client) DeleteContent(ctx context.Context, contentID int) error {
	return c.Delete(ctx, fmt.Sprintf("/api/teachers/contents/%d", contentID), nil)
}

// ReorderContents sets the order of a lesson's contents.
func (c *Client) ReorderContents(ctx context.Context, lessonID int, order []ReorderItem) error {
	return c.Put(ctx, fmt.Sprintf("/api/teachers/lessons/%d/contents/reorder", lessonID), order, nil)
}
