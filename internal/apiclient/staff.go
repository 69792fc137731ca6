package apiclient

import (
	"context"
	"fmt"
)

func staffPath(orgID int) string {
	return fmt.Sprintf("/api/organizations/%d/staff", orgID)
}

// ListStaff returns an organization's staff.
func (c *Client) ListStaff(ctx context.Context, orgID int) ([]StaffMember, error) {
	var out []StaffMember
	if err := c.Get(ctx, staffPath(orgID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InviteStaff invites a staff member to an organization.
func (c *Client) InviteStaff(ctx context.Context, orgID int, in StaffInvite) (*StaffMember, error) {
	var out StaffMember
	if err := c.Post(ctx, staffPath(orgID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStaffRole changes a staff member's role.
func (c *Client) UpdateStaffRole(ctx context.Context, orgID, staffID int, role string) (*StaffMember, error) {
	var out StaffMember
	body := map[string]string{"role": role}
	if err := c.Put(ctx, fmt.Sprintf("%s/%d", staffPath(orgID), staffID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveStaff removes a staff member from an organization.
func (c *Client) RemoveStaff(ctx context.Context, orgID, staffID int) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%d", staffPath(orgID), staffID), nil)
}
