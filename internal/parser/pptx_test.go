package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"PitchAdvisor/internal/models"
)

const slideWithTitleXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
        <p:txBody><a:p><a:r><a:t>The Problem</a:t></a:r></a:p></p:txBody>
      </p:sp>
      <p:sp>
        <p:nvSpPr><p:nvPr/></p:nvSpPr>
        <p:txBody>
          <a:p><a:r><a:t>Customers lose hours every week</a:t></a:r></a:p>
          <a:p><a:r><a:t>No existing tool helps</a:t></a:r></a:p>
        </p:txBody>
      </p:sp>
      <p:pic>
        <p:blipFill><a:blip r:embed="rId2"/></p:blipFill>
      </p:pic>
    </p:spTree>
  </p:cSld>
</p:sld>`

const slideNoTitleXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:nvPr/></p:nvSpPr>
        <p:txBody><a:p><a:r><a:t>Closing thoughts</a:t></a:r></a:p></p:txBody>
      </p:sp>
      <p:sp>
        <p:nvSpPr><p:nvPr/></p:nvSpPr>
        <p:txBody><a:p><a:r><a:t>Thank you</a:t></a:r></a:p></p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`

const notesSlideXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:notes xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:nvPr><p:ph type="body"/></p:nvPr></p:nvSpPr>
        <p:txBody><a:p><a:r><a:t>Pause here for the demo</a:t></a:r></a:p></p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:notes>`

const slide1RelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
</Relationships>`

const slideLayoutXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sldLayout xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld name="Title and Content"/>
</p:sldLayout>`

// tiny 1x1 PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func buildPPTX(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func defaultPPTXFixture(t *testing.T) []byte {
	return buildPPTX(t, map[string][]byte{
		"ppt/slides/slide1.xml":             []byte(slideWithTitleXML),
		"ppt/slides/slide3.xml":             []byte(slideNoTitleXML),
		"ppt/slides/_rels/slide1.xml.rels":  []byte(slide1RelsXML),
		"ppt/notesSlides/notesSlide1.xml":   []byte(notesSlideXML),
		"ppt/slideLayouts/slideLayout1.xml": []byte(slideLayoutXML),
		"ppt/media/image1.png":              pngBytes,
	})
}

func newTestPPTXParser(gw *fakeGateway) *PPTXParser {
	return NewPPTXParser(gw, NewOCR(nil, testLogger()), testLogger())
}

func TestPPTXParse(t *testing.T) {
	gw := newFakeGateway()
	p := newTestPPTXParser(gw)

	result, err := p.Parse(context.Background(), ParseInput{DeckID: "deck-1", Data: defaultPPTXFixture(t)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Slides) != 2 {
		t.Fatalf("got %d slides, want 2", len(result.Slides))
	}

	first := result.Slides[0]
	if first.SlideNumber != 1 {
		t.Errorf("first slide number = %d, want 1", first.SlideNumber)
	}
	if first.Title != "The Problem" {
		t.Errorf("title = %q, want %q", first.Title, "The Problem")
	}
	if first.Content != "Customers lose hours every week\nNo existing tool helps" {
		t.Errorf("content = %q", first.Content)
	}
	if first.Notes != "Pause here for the demo" {
		t.Errorf("notes = %q", first.Notes)
	}
	if first.ImageObjectKey == "" {
		t.Error("expected an image object key for the first slide")
	}
	if _, ok := gw.uploads[first.ImageObjectKey]; !ok {
		t.Errorf("image %q was not uploaded", first.ImageObjectKey)
	}

	extras, ok := first.Extras.(PPTXSlideExtras)
	if !ok {
		t.Fatalf("extras have type %T", first.Extras)
	}
	if extras.Layout != "Title and Content" {
		t.Errorf("layout = %q, want %q", extras.Layout, "Title and Content")
	}
	if extras.ShapeCount != 2 {
		t.Errorf("shape count = %d, want 2", extras.ShapeCount)
	}
	if !extras.HasImages {
		t.Error("extras should report images")
	}

	// slide3.xml must be renumbered to a contiguous 2.
	second := result.Slides[1]
	if second.SlideNumber != 2 {
		t.Errorf("second slide number = %d, want 2", second.SlideNumber)
	}
	// No title placeholder: the first non-empty shape becomes the title.
	if second.Title != "Closing thoughts" {
		t.Errorf("fallback title = %q, want %q", second.Title, "Closing thoughts")
	}
	if second.Content != "Thank you" {
		t.Errorf("content = %q, want %q", second.Content, "Thank you")
	}
	if second.Notes != "" {
		t.Errorf("notes = %q, want empty", second.Notes)
	}
}

func TestPPTXDeckMetadata(t *testing.T) {
	gw := newFakeGateway()
	p := newTestPPTXParser(gw)

	result, err := p.Parse(context.Background(), ParseInput{DeckID: "deck-1", Data: defaultPPTXFixture(t)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	md := result.Metadata
	if md.TotalSlides != 2 {
		t.Errorf("total_slides = %d, want 2", md.TotalSlides)
	}
	if md.SourceFormat != models.FormatPPTX {
		t.Errorf("source_format = %s, want pptx", md.SourceFormat)
	}
	if !md.HasNotes || !md.HasImages {
		t.Errorf("has_notes=%v has_images=%v, want both true", md.HasNotes, md.HasImages)
	}
	if len(md.SlideLayouts) != 1 || md.SlideLayouts[0] != "Title and Content" {
		t.Errorf("slide_layouts = %v", md.SlideLayouts)
	}
}

func TestPPTXImageUploadFailureIsNotFatal(t *testing.T) {
	gw := newFakeGateway()
	gw.uploadErr = errors.New("backend down")
	p := newTestPPTXParser(gw)

	result, err := p.Parse(context.Background(), ParseInput{DeckID: "deck-1", Data: defaultPPTXFixture(t)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	first := result.Slides[0]
	if first.ImageObjectKey != "" {
		t.Errorf("image key = %q, want empty after upload failure", first.ImageObjectKey)
	}
	if first.Title != "The Problem" {
		t.Error("text extraction must survive image failures")
	}

	failed := false
	for _, a := range first.Images {
		if a.Kind == "embedded" && a.Status == ArtifactFailed {
			failed = true
		}
	}
	if !failed {
		t.Errorf("expected a failed embedded artifact, got %v", first.Images)
	}
}

func TestPPTXNotAZip(t *testing.T) {
	p := newTestPPTXParser(newFakeGateway())
	_, err := p.Parse(context.Background(), ParseInput{DeckID: "deck-1", Data: []byte("this is not a zip")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPPTXNoSlides(t *testing.T) {
	data := buildPPTX(t, map[string][]byte{
		"docProps/app.xml": []byte("<Properties/>"),
	})
	p := newTestPPTXParser(newFakeGateway())
	_, err := p.Parse(context.Background(), ParseInput{DeckID: "deck-1", Data: data})
	if !errors.Is(err, ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestSlideFileNumber(t *testing.T) {
	cases := map[string]int{
		"ppt/slides/slide1.xml":  1,
		"ppt/slides/slide12.xml": 12,
		"ppt/slides/slideX.xml":  0,
	}
	for name, want := range cases {
		if got := slideFileNumber(name); got != want {
			t.Errorf("slideFileNumber(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestResolveRelTarget(t *testing.T) {
	cases := []struct {
		base, target, want string
	}{
		{"ppt/slides", "../media/image1.png", "ppt/media/image1.png"},
		{"ppt/slides", "../notesSlides/notesSlide1.xml", "ppt/notesSlides/notesSlide1.xml"},
		{"ppt/slides", "..\\media\\image2.jpeg", "ppt/media/image2.jpeg"},
	}
	for _, tc := range cases {
		if got := resolveRelTarget(tc.base, tc.target); got != tc.want {
			t.Errorf("resolveRelTarget(%q, %q) = %q, want %q", tc.base, tc.target, got, tc.want)
		}
	}
}
