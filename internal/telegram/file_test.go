package telegram

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gotd/td/tg"
)

type fakeFile struct {
	data    []byte
	err     error
	offsets []int64
}

func (f *fakeFile) UploadGetFile(_ context.Context, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error) {
	f.offsets = append(f.offsets, req.Offset)
	if f.err != nil {
		return nil, f.err
	}
	if req.Offset >= int64(len(f.data)) {
		return &tg.UploadFile{}, nil
	}
	end := min(req.Offset+int64(req.Limit), int64(len(f.data)))
	return &tg.UploadFile{Bytes: f.data[req.Offset:end]}, nil
}

func patterned(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestPlanParts(t *testing.T) {
	got := planParts(filePartSize-10, 30)
	want := []part{
		{offset: 0, skip: filePartSize - 10, take: 10},
		{offset: filePartSize, skip: 0, take: 20},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(part{})); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	if planParts(0, 0) != nil {
		t.Fatal("empty length should plan nothing")
	}
}

func TestReadRangeAcrossParts(t *testing.T) {
	data := patterned(2*filePartSize + 100)
	api := &fakeFile{data: data}

	got, err := readRange(context.Background(), api, &tg.InputDocumentFileLocation{}, filePartSize-10, 30)
	if err != nil {
		t.Fatalf("readRange: %v", err)
	}
	if !bytes.Equal(got, data[filePartSize-10:filePartSize+20]) {
		t.Fatal("range bytes mismatch")
	}
	if want := []int64{0, filePartSize}; !cmp.Equal(want, api.offsets) {
		t.Fatalf("offsets %v, want %v", api.offsets, want)
	}
}

func TestReadRangeStopsAtEOF(t *testing.T) {
	data := patterned(5000)
	api := &fakeFile{data: data}

	got, err := readRange(context.Background(), api, &tg.InputDocumentFileLocation{}, 4900, 1000)
	if err != nil {
		t.Fatalf("readRange: %v", err)
	}
	if !bytes.Equal(got, data[4900:]) {
		t.Fatalf("expected tail of 100 bytes, got %d", len(got))
	}
	if len(api.offsets) != 1 {
		t.Fatalf("short part must not be retried, calls=%d", len(api.offsets))
	}
}

func TestReadRangeOversizedLengthAllocatesDelivered(t *testing.T) {
	api := &fakeFile{data: patterned(100)}

	got, err := readRange(context.Background(), api, &tg.InputDocumentFileLocation{}, 0, 1<<30)
	if err != nil {
		t.Fatalf("readRange: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}
	if cap(got) > filePartSize {
		t.Fatalf("buffer sized from requested length: cap=%d", cap(got))
	}
	if len(api.offsets) != 1 {
		t.Fatalf("expected one part request, got %d", len(api.offsets))
	}
}

func TestReadRangeError(t *testing.T) {
	boom := errors.New("file part invalid")
	_, err := readRange(context.Background(), &fakeFile{err: boom}, &tg.InputDocumentFileLocation{}, 0, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestChunkWriter(t *testing.T) {
	var chunks [][]byte
	w := newChunkWriter(4, func(b []byte) error {
		chunks = append(chunks, append([]byte(nil), b...))
		return nil
	})
	for _, p := range []string{"ab", "cdefg", "hij"} {
		if _, err := w.Write([]byte(p)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	want := [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkWriterPropagatesError(t *testing.T) {
	stop := errors.New("client gone")
	w := newChunkWriter(2, func([]byte) error { return stop })
	n, err := w.Write([]byte("abc"))
	if !errors.Is(err, stop) || n != 2 {
		t.Fatalf("expected stop after first chunk, n=%d err=%v", n, err)
	}
}
