package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewMockup(t *testing.T) {
	m := NewMockup("20250101_120000000001", "Weather", "Create a weather dashboard", "<!DOCTYPE html>")

	if m.HTMLFilename != "mockup_20250101_120000000001.html" {
		t.Errorf("HTMLFilename = %q", m.HTMLFilename)
	}
	if m.ScreenshotFilename != "mockup_20250101_120000000001.png" {
		t.Errorf("ScreenshotFilename = %q", m.ScreenshotFilename)
	}
	if m.RenderStatus != RenderPending {
		t.Errorf("RenderStatus = %q, want %q", m.RenderStatus, RenderPending)
	}
	if m.CreatedAt == "" || m.CreatedAt != m.UpdatedAt {
		t.Error("CreatedAt and UpdatedAt should be set and equal for new mockups")
	}
	if len(m.Feedback) != 0 {
		t.Errorf("Feedback len = %d, want 0", len(m.Feedback))
	}
}

func TestMockupJSON_EmptyFeedbackIsList(t *testing.T) {
	b, err := json.Marshal(NewMockup("m1", "", "p", "<!DOCTYPE html>"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"feedback":[]`) {
		t.Errorf("json = %s, want feedback as an empty list", b)
	}
}

func TestConversation_UserTurnsAndClone(t *testing.T) {
	c := NewConversation("c-1")
	c.Messages = append(c.Messages,
		Message{Role: RoleUser, Content: "a todo app"},
		Message{Role: RoleAssistant, Content: "who uses it?"},
		Message{Role: RoleUser, Content: "students"},
	)

	turns := c.UserTurns()
	if len(turns) != 2 || turns[0] != "a todo app" || turns[1] != "students" {
		t.Errorf("UserTurns = %v", turns)
	}

	cp := c.Clone()
	cp.Messages[0].Content = "changed"
	if c.Messages[0].Content != "a todo app" {
		t.Error("Clone should not share the message slice")
	}

	last, ok := c.LastMessage()
	if !ok || last.Content != "students" {
		t.Errorf("LastMessage = %+v, %v", last, ok)
	}
}

func TestBatchResult_Add(t *testing.T) {
	var b BatchResult
	b.Add(PublishResult{Success: true})
	b.Add(PublishResult{Success: false})
	b.Add(PublishResult{Success: true})

	if b.Successful != 2 || b.Failed != 1 {
		t.Errorf("counts = %d/%d, want 2/1", b.Successful, b.Failed)
	}
	if b.Successful+b.Failed != len(b.Results) {
		t.Error("counts should partition results")
	}
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("prompt is required")
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("InvalidInput should match ErrInvalidInput")
	}
	if err.Error() != "prompt is required" {
		t.Errorf("Error() = %q", err.Error())
	}
	wrapped := fmt.Errorf("generate: %w", err)
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Error("wrapped input error should still match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("input error should not match ErrNotFound")
	}
}
