package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// extractDOCX reads the WordprocessingML body of a .docx archive.
// No third-party docx library is used; the format is a zip with one
// well-known XML member.
func extractDOCX(ctx context.Context, data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", errors.New("docx archive has no word/document.xml")
	}

	body, err := document.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()

	return wordprocessingText(body)
}

// wordprocessingText walks the XML token stream collecting run text
// (<w:t>) and inserting breaks at paragraph ends (</w:p>).
func wordprocessingText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}

		if sb.Len() > MaxTextLength*4 {
			break
		}
	}

	return sb.String(), nil
}
