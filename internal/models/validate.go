package models

import (
	"errors"
	"net/mail"
	"strings"
)

const minTitleLen = 3

// ValidatePost checks the fields a client controls when creating or editing
// a post. All violations are joined into one error message.
func ValidatePost(p *Post) error {
	var problems []string
	if len(strings.TrimSpace(p.Title)) < minTitleLen {
		problems = append(problems, "Title must be at least 3 characters long.")
	}
	if strings.TrimSpace(p.Body) == "" {
		problems = append(problems, "Post body must not be empty.")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, " "))
	}
	return nil
}

// ValidateComment rejects empty comment text.
func ValidateComment(c *Comment) error {
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("Comment text must not be empty.")
	}
	return nil
}

// ValidateSignup checks the signup payload before any database work.
func ValidateSignup(name, email, username, password string) error {
	var problems []string
	if strings.TrimSpace(name) == "" {
		problems = append(problems, "Name must not be empty.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		problems = append(problems, "Email address is invalid.")
	}
	if len(username) < 3 {
		problems = append(problems, "Username must be at least 3 characters long.")
	}
	if len(password) < 8 {
		problems = append(problems, "Password must be at least 8 characters long.")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, " "))
	}
	return nil
}

// ValidateMessage requires text or an attachment.
func ValidateMessage(m *Message) error {
	if strings.TrimSpace(m.Text) == "" && len(m.Attachment) == 0 {
		return errors.New("Message must carry text or an attachment.")
	}
	return nil
}
