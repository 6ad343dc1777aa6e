// Package templates renders the verification email body.
package templates

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed verification.html
var defaultTemplate string

// VerificationData is the input to the verification email template.
type VerificationData struct {
	Nickname     string
	Code         string
	ValidMinutes int
}

// Renderer renders verification emails from a parsed html/template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses text as the verification template. An empty text
// selects the embedded default.
func NewRenderer(text string) (*Renderer, error) {
	if text == "" {
		text = defaultTemplate
	}
	tmpl, err := template.New("verification").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse verification template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Default returns a Renderer for the embedded template.
func Default() *Renderer {
	r, err := NewRenderer("")
	if err != nil {
		panic(err)
	}
	return r
}

// Verification renders the email body for code, valid for ttl.
func (r *Renderer) Verification(nickname, code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, VerificationData{
		Nickname:     nickname,
		Code:         code,
		ValidMinutes: int(ttl.Minutes()),
	})
	if err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}

// ObjectFetcher reads an object body by key.
type ObjectFetcher interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Load fetches a template override from object storage and parses it.
func Load(ctx context.Context, fetcher ObjectFetcher, key string) (*Renderer, error) {
	body, err := fetcher.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch template %s: %w", key, err)
	}
	defer body.Close()
	text, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", key, err)
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, fmt.Errorf("template %s is empty", key)
	}
	return NewRenderer(string(text))
}
