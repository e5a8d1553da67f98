package ses

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
)

// buildMIME assembles the raw RFC 5322 message. Raw sending is required
// because SES's structured API cannot carry attachments or the
// list-management headers.
func buildMIME(msg *dispatch.OutboundEmail) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader := func(name, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}

	writeHeader("From", msg.From)
	writeHeader("To", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		writeHeader("Cc", strings.Join(msg.CC, ", "))
	}
	if len(msg.ReplyTo) > 0 {
		writeHeader("Reply-To", strings.Join(msg.ReplyTo, ", "))
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(EmailIDHeader, msg.EmailID)
	if msg.IsBulk {
		writeHeader("Precedence", "bulk")
	}
	if msg.UnsubscribeURL != "" {
		writeHeader("List-Unsubscribe", "<"+msg.UnsubscribeURL+">")
		writeHeader("List-Unsubscribe-Post", "List-Unsubscribe=One-Click")
	}
	writeHeader("MIME-Version", "1.0")

	bodyHdr, body, err := buildBody(msg)
	if err != nil {
		return nil, err
	}

	if len(msg.Attachments) == 0 {
		for _, name := range []string{"Content-Type", "Content-Transfer-Encoding"} {
			if v := bodyHdr.Get(name); v != "" {
				writeHeader(name, v)
			}
		}
		buf.WriteString("\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	writeHeader("Content-Type", `multipart/mixed; boundary="`+mixed.Boundary()+`"`)
	buf.WriteString("\r\n")

	// The body's content headers must live in the part header block, not in
	// the part content, or clients read them as body text.
	part, err := mixed.CreatePart(bodyHdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(body); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "application/octet-stream")
		hdr.Set("Content-Transfer-Encoding", "base64")
		hdr.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, att.Filename))
		part, err := mixed.CreatePart(hdr)
		if err != nil {
			return nil, err
		}
		// Attachment content arrives base64-encoded from the API and is
		// carried through as-is.
		if _, err := part.Write([]byte(att.Content)); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildBody produces the content headers and encoded bytes for the text/html
// body: multipart/alternative when both are present, a single part otherwise.
// The headers come back separately so the caller can place them at the top
// level or inside a multipart/mixed part header.
func buildBody(msg *dispatch.OutboundEmail) (textproto.MIMEHeader, []byte, error) {
	hdr := textproto.MIMEHeader{}
	var buf bytes.Buffer

	if msg.HTML != "" && msg.Text != "" {
		alt := multipart.NewWriter(&buf)
		hdr.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
		if err := writePart(alt, "text/plain", msg.Text); err != nil {
			return nil, nil, err
		}
		if err := writePart(alt, "text/html", msg.HTML); err != nil {
			return nil, nil, err
		}
		if err := alt.Close(); err != nil {
			return nil, nil, err
		}
		return hdr, buf.Bytes(), nil
	}

	contentType, content := "text/html", msg.HTML
	if msg.HTML == "" {
		contentType, content = "text/plain", msg.Text
	}
	hdr.Set("Content-Type", contentType+"; charset=utf-8")
	hdr.Set("Content-Transfer-Encoding", "quoted-printable")
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(content)); err != nil {
		return nil, nil, err
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}
	return hdr, buf.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", contentType+"; charset=utf-8")
	hdr.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	w := quotedprintable.NewWriter(part)
	if _, err := w.Write([]byte(content)); err != nil {
		return err
	}
	return w.Close()
}
