package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"google.golang.org/genai"

	"deepresearch/internal/config"
)

// ErrUnsupportedType is returned for uploads outside the accepted set
// (png, jpg/jpeg, pdf, docx).
var ErrUnsupportedType = errors.New("unsupported file type")

const defaultOCRModel = "gemini-2.5-flash"

const ocrPrompt = "Extract all text content from this document and return it as plain markdown. " +
	"Preserve headings, lists and tables where possible. " +
	"Output only the extracted text; do not include any additional commentary."

// canonical mime per accepted extension
var acceptedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// sniffed content types we accept per extension; docx sniffs as a zip
var acceptedSniffs = map[string][]string{
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".pdf":  {"application/pdf"},
	".docx": {"application/zip", "application/octet-stream"},
}

// Detect validates an upload by extension plus content sniffing and
// returns the canonical mime type. head is the first bytes of the file
// (512 are enough for http.DetectContentType).
func Detect(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime, ok := acceptedTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	sniffed := http.DetectContentType(head)
	for _, allowed := range acceptedSniffs[ext] {
		if strings.HasPrefix(sniffed, allowed) {
			return mime, nil
		}
	}
	return "", fmt.Errorf("%w: %s content does not match %s", ErrUnsupportedType, sniffed, ext)
}

type transcriber interface {
	Transcribe(ctx context.Context, data []byte, mime string) (string, error)
}

// Service extracts plain text from accepted uploads. Images and PDFs go
// through the Gemini OCR path; docx goes through the document loader
// with a dedicated parser.
type Service struct {
	loader *file.FileLoader
	ocr    transcriber
}

// NewService builds the extractor. The OCR path requires the gemini
// provider key; without it image and pdf uploads are rejected at
// extraction time.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".docx": &docxParser{},
		},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}

	svc := &Service{loader: loader}
	if cfg != nil {
		if ocr, err := newGeminiOCR(ctx, cfg); err == nil {
			svc.ocr = ocr
		}
	}
	return svc, nil
}

// Extract returns the text content of the stored file. The result is
// non-empty for any successfully extracted document.
func (s *Service) Extract(ctx context.Context, path, mime string) (string, error) {
	switch {
	case strings.HasPrefix(mime, "image/"), mime == "application/pdf":
		if s.ocr == nil {
			return "", errors.New("ocr unavailable: gemini api key not configured")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		text, err := s.ocr.Transcribe(ctx, data, mime)
		if err != nil {
			return "", fmt.Errorf("transcribe upload: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", errors.New("file has no readable text content")
		}
		return text, nil
	default:
		docs, err := s.loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			return "", fmt.Errorf("load file: %w", err)
		}
		var builder strings.Builder
		for _, doc := range docs {
			content := strings.TrimSpace(doc.Content)
			if content == "" {
				continue
			}
			builder.WriteString(content)
			builder.WriteString("\n\n")
		}
		text := strings.TrimSpace(builder.String())
		if text == "" {
			return "", errors.New("file has no readable text content")
		}
		return text, nil
	}
}

type geminiOCR struct {
	client *genai.Client
	model  string
}

func newGeminiOCR(ctx context.Context, cfg *config.Config) (*geminiOCR, error) {
	token, err := cfg.ProviderKey("gemini")
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: token,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	model := defaultOCRModel
	if prov, ok := cfg.Providers["gemini"]; ok && prov.Model != "" {
		model = prov.Model
	}
	return &geminiOCR{client: client, model: model}, nil
}

func (g *geminiOCR) Transcribe(ctx context.Context, data []byte, mime string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(ocrPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
