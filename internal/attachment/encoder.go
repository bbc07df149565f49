// Package attachment turns uploaded files into self-contained data-URL records.
package attachment

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"stratagem-ai/internal/model"
)

const DefaultMaxBytes = 20 << 20

// File is one user-selected file waiting to be encoded.
type File struct {
	Name string
	Type string
	Open func() (io.ReadCloser, error)
}

func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name: filepath.Base(fh.Filename),
		Type: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type Encoder struct {
	maxBytes int64
}

func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{maxBytes: maxBytes}
}

// Encode reads every file in its own goroutine and hands each finished
// attachment to sink as soon as it is ready, so sink sees completion order and
// must be safe for concurrent use. Files that fail to read are logged and
// dropped. The returned channel closes once all files have settled.
func (e *Encoder) Encode(ctx context.Context, files []File, sink func(model.Attachment)) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			att, err := e.encodeOne(ctx, f)
			if err != nil {
				log.Printf("encode attachment %q failed: %v", f.Name, err)
				return
			}
			sink(att)
		}(f)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// EncodeAll is the blocking form of Encode, returning attachments in
// completion order.
func (e *Encoder) EncodeAll(ctx context.Context, files []File) []model.Attachment {
	var (
		mu  sync.Mutex
		out []model.Attachment
	)
	<-e.Encode(ctx, files, func(att model.Attachment) {
		mu.Lock()
		out = append(out, att)
		mu.Unlock()
	})
	return out
}

func (e *Encoder) encodeOne(ctx context.Context, f File) (model.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return model.Attachment{}, err
	}
	if f.Open == nil {
		return model.Attachment{}, fmt.Errorf("file has no reader")
	}
	rc, err := f.Open()
	if err != nil {
		return model.Attachment{}, fmt.Errorf("open file failed: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, e.maxBytes+1))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("read file failed: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return model.Attachment{}, fmt.Errorf("file exceeds %d bytes", e.maxBytes)
	}

	mimeType := strings.TrimSpace(f.Type)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = sniff(raw)
	}
	return model.Attachment{
		Name: f.Name,
		Type: mimeType,
		Data: DataURL(mimeType, raw),
	}, nil
}

func sniff(raw []byte) string {
	detected := mimetype.Detect(raw).String()
	base, _, _ := strings.Cut(detected, ";")
	return strings.TrimSpace(base)
}
