package inbox

import (
	"bytes"
	"encoding/base64"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var (
	reBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</tr>|</div>|</li>`)
	reTags   = regexp.MustCompile(`(?is)<[^>]+>`)
)

type parsedMail struct {
	Subject string
	From    string
	Date    time.Time
	Text    string
}

// parseMessage returns the best text body of an RFC822 message, converting
// HTML-only messages to text line by line.
func parseMessage(raw []byte) parsedMail {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return parsedMail{Text: string(raw)}
	}

	dec := new(mime.WordDecoder)
	header := func(k string) string {
		v := strings.TrimSpace(msg.Header.Get(k))
		if out, err := dec.DecodeHeader(v); err == nil {
			return out
		}
		return v
	}

	out := parsedMail{Subject: header("Subject"), From: header("From")}
	if d, err := mail.ParseDate(msg.Header.Get("Date")); err == nil {
		out.Date = d
	}

	body, _ := io.ReadAll(io.LimitReader(msg.Body, 10<<20))
	plain, htmlPart := textParts(msg.Header, body)
	switch {
	case strings.TrimSpace(plain) != "":
		out.Text = plain
	case htmlPart != "":
		out.Text = htmlToText(htmlPart)
	default:
		out.Text = string(body)
	}
	out.Text = strings.ReplaceAll(out.Text, "\r\n", "\n")
	return out
}

func textParts(h mail.Header, body []byte) (plain, htmlPart string) {
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return string(decodeTransfer(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			pMedia, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			pMedia = strings.ToLower(pMedia)
			b, _ := io.ReadAll(io.LimitReader(p, 5<<20))
			b = decodeTransfer(b, strings.ToLower(p.Header.Get("Content-Transfer-Encoding")))

			switch {
			case strings.HasPrefix(pMedia, "multipart/"):
				pl, ht := textParts(mail.Header(p.Header), b)
				if len(pl) > len(plain) {
					plain = pl
				}
				if len(ht) > len(htmlPart) {
					htmlPart = ht
				}
			case strings.HasPrefix(pMedia, "text/plain"):
				if len(b) > len(plain) {
					plain = string(b)
				}
			case strings.HasPrefix(pMedia, "text/html"):
				if len(b) > len(htmlPart) {
					htmlPart = string(b)
				}
			}
		}
		return plain, htmlPart
	}

	s := string(decodeTransfer(body, cte))
	if strings.HasPrefix(mediaType, "text/html") {
		return "", s
	}
	return s, ""
}

func decodeTransfer(b []byte, cte string) []byte {
	var r io.Reader
	switch strings.TrimSpace(cte) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(b))
	default:
		return b
	}
	out, err := io.ReadAll(io.LimitReader(r, 5<<20))
	if err != nil && len(out) == 0 {
		return b
	}
	return out
}

func htmlToText(s string) string {
	s = reBreaks.ReplaceAllString(s, "\n")
	s = reTags.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.Join(strings.Fields(ln), " "); ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n")
}
