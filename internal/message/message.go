// Package message parses raw email bytes and projects them onto the flat
// field set shared by the search index and the read APIs. Projection is a
// pure function of the input bytes: it runs at ingest time and again during
// index rebuilds and must produce identical output both times.
package message

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Parsed is the structured form of one email message.
type Parsed struct {
	From    []*mail.Address
	To      []*mail.Address
	Cc      []*mail.Address
	Bcc     []*mail.Address
	Subject string
	Date    time.Time // zero if the Date header is absent or unparseable

	TextParts   []string
	HTMLParts   []string
	Attachments []string
}

// Model is the canonical projection of a message. Address lists are single
// comma-joined strings, Content is every text body joined by a blank line.
type Model struct {
	From           string
	To             string
	Cc             string
	Bcc            string
	Subject        string
	Content        string
	TimestampSecs  int64
	IsHTML         bool
	IsText         bool
	HasAttachments bool
}

// Parse decodes raw message bytes. Messages with unknown charsets are
// parsed on a best-effort basis; structurally invalid messages fail.
func Parse(raw []byte) (*Parsed, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("mail.CreateReader: %w", err)
	}

	p := &Parsed{
		From: addressList(mr.Header, "From"),
		To:   addressList(mr.Header, "To"),
		Cc:   addressList(mr.Header, "Cc"),
		Bcc:  addressList(mr.Header, "Bcc"),
	}
	if subject, err := mr.Header.Subject(); err == nil {
		p.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		p.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return nil, fmt.Errorf("mail.NextPart: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, err := h.ContentType()
			if err != nil {
				continue
			}
			switch mediaType {
			case "text/plain":
				body, err := io.ReadAll(part.Body)
				if err != nil {
					return nil, fmt.Errorf("read text body: %w", err)
				}
				p.TextParts = append(p.TextParts, string(body))
			case "text/html":
				body, err := io.ReadAll(part.Body)
				if err != nil {
					return nil, fmt.Errorf("read html body: %w", err)
				}
				p.HTMLParts = append(p.HTMLParts, string(body))
			}
		case *mail.AttachmentHeader:
			name, err := h.Filename()
			if err != nil || name == "" {
				name = "attachment"
			}
			p.Attachments = append(p.Attachments, name)
		}
	}

	return p, nil
}

// Project flattens a parsed message into the canonical field set.
func Project(p *Parsed) Model {
	var timestamp int64
	if !p.Date.IsZero() {
		timestamp = p.Date.Unix()
	}
	return Model{
		From:           formatAddresses(p.From),
		To:             formatAddresses(p.To),
		Cc:             formatAddresses(p.Cc),
		Bcc:            formatAddresses(p.Bcc),
		Subject:        p.Subject,
		Content:        strings.Join(p.TextParts, "\n\n"),
		TimestampSecs:  timestamp,
		IsHTML:         len(p.HTMLParts) > 0,
		IsText:         len(p.TextParts) > 0,
		HasAttachments: len(p.Attachments) > 0,
	}
}

// ProjectContent returns the joined body parts, HTML or plain text.
func ProjectContent(p *Parsed, html bool) string {
	if html {
		return strings.Join(p.HTMLParts, "\n\n")
	}
	return strings.Join(p.TextParts, "\n\n")
}

// formatAddresses renders each entry as "Name <addr>" when a display name is
// present and as the bare address otherwise, joined by ", ".
func formatAddresses(addrs []*mail.Address) string {
	rendered := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Name != "" {
			rendered = append(rendered, fmt.Sprintf("%s <%s>", addr.Name, addr.Address))
		} else {
			rendered = append(rendered, addr.Address)
		}
	}
	return strings.Join(rendered, ", ")
}

func addressList(h mail.Header, key string) []*mail.Address {
	addrs, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	return addrs
}
