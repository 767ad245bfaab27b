package providers

import (
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/responses"
)

func TestOpenAIBuildInput(t *testing.T) {
	instructions, items := buildInput([]Message{
		{Role: "system", Content: "You analyze medical bills."},
		{Role: "user", Content: "Extract the line items.", Images: [][]byte{[]byte("fake-png")}, ImageMIME: "image/png"},
		{Role: "assistant", Content: "{}"},
	})

	if instructions != "You analyze medical bills." {
		t.Errorf("instructions = %q", instructions)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (system excluded)", len(items))
	}

	first := items[0].OfMessage
	if first == nil {
		t.Fatal("first item is not a message")
	}
	if first.Role != responses.EasyInputMessageRoleUser {
		t.Errorf("role = %q, want user", first.Role)
	}
	content := first.Content.OfInputItemContentList
	if len(content) != 2 {
		t.Fatalf("content parts = %d, want text + image", len(content))
	}
	if content[0].OfInputText == nil || content[0].OfInputText.Text != "Extract the line items." {
		t.Errorf("text part = %+v", content[0])
	}
	img := content[1].OfInputImage
	if img == nil {
		t.Fatal("image part missing")
	}
	if !strings.HasPrefix(img.ImageURL.Value, "data:image/png;base64,") {
		t.Errorf("image url = %q, want base64 data URL", img.ImageURL.Value)
	}

	second := items[1].OfMessage
	if second == nil || second.Role != responses.EasyInputMessageRoleAssistant {
		t.Errorf("second item = %+v, want assistant message", items[1])
	}
}

func TestOpenAIBuildInput_DefaultMIME(t *testing.T) {
	_, items := buildInput([]Message{
		{Role: "user", Content: "page", Images: [][]byte{[]byte("x")}},
	})
	img := items[0].OfMessage.Content.OfInputItemContentList[1].OfInputImage
	if !strings.HasPrefix(img.ImageURL.Value, "data:image/png;base64,") {
		t.Errorf("image url = %q, want image/png default", img.ImageURL.Value)
	}
}
