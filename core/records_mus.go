package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written mus-format serializers for the stored record types. Each
// XxxMUS value exposes Marshal/Unmarshal/Size over the corresponding domain
// type. Timestamps are encoded as Unix microseconds, with 0 reserved for the
// zero time so optional timestamps survive a round trip.

var stringSliceMUS = ord.NewSliceSer[string](ord.String)

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return varint.Int64.Marshal(0, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(t.UnixMicro())
}

// StatusMUS serializes the Status defined type.
var StatusMUS = statusMUS{}

type statusMUS struct{}

func (statusMUS) Marshal(v Status, bs []byte) int {
	return varint.Int.Marshal(int(v), bs)
}

func (statusMUS) Unmarshal(bs []byte) (Status, int, error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return Status(v), n, err
}

func (statusMUS) Size(v Status) int {
	return varint.Int.Size(int(v))
}

// PaperMUS serializes Paper records.
var PaperMUS = paperMUS{}

type paperMUS struct{}

func (paperMUS) Marshal(v Paper, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.ArxivID, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += stringSliceMUS.Marshal(v.Authors, bs[n:])
	n += stringSliceMUS.Marshal(v.Categories, bs[n:])
	n += ord.String.Marshal(v.Abstract, bs[n:])
	n += marshalTime(v.PublishedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += StatusMUS.Marshal(v.Status, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.IngestedAt, bs[n:])
	return n
}

func (paperMUS) Unmarshal(bs []byte) (v Paper, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.ArxivID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Authors, m, err = stringSliceMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Categories, m, err = stringSliceMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Abstract, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.PublishedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Status, m, err = StatusMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Error, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.IngestedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (paperMUS) Size(v Paper) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.ArxivID)
	size += ord.String.Size(v.Title)
	size += stringSliceMUS.Size(v.Authors)
	size += stringSliceMUS.Size(v.Categories)
	size += ord.String.Size(v.Abstract)
	size += sizeTime(v.PublishedAt)
	size += sizeTime(v.UpdatedAt)
	size += StatusMUS.Size(v.Status)
	size += ord.String.Size(v.Error)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.IngestedAt)
	return size
}

// SectionMUS serializes Section records.
var SectionMUS = sectionMUS{}

type sectionMUS struct{}

func (sectionMUS) Marshal(v Section, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.PaperID, bs[n:])
	n += ord.String.Marshal(v.Heading, bs[n:])
	n += varint.Int.Marshal(v.Level, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(v.Position, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (sectionMUS) Unmarshal(bs []byte) (v Section, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.PaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Heading, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Level, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Content, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Position, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (sectionMUS) Size(v Section) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.PaperID)
	size += ord.String.Size(v.Heading)
	size += varint.Int.Size(v.Level)
	size += ord.String.Size(v.Content)
	size += varint.Int.Size(v.Position)
	size += sizeTime(v.CreatedAt)
	return size
}

// ExtractionMUS serializes Extraction records.
var ExtractionMUS = extractionMUS{}

type extractionMUS struct{}

func (extractionMUS) Marshal(v Extraction, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.PaperID, bs[n:])
	n += varint.Int.Marshal(int(v.Type), bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Detail, bs[n:])
	n += ord.String.Marshal(v.SectionID, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (extractionMUS) Unmarshal(bs []byte) (v Extraction, n int, err error) {
	var (
		m   int
		typ int
	)
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.PaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if typ, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.Type = ExtractionType(typ)
	n += m
	if v.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Detail, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SectionID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (extractionMUS) Size(v Extraction) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.PaperID)
	size += varint.Int.Size(int(v.Type))
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Detail)
	size += ord.String.Size(v.SectionID)
	size += sizeTime(v.CreatedAt)
	return size
}

// CitationMUS serializes Citation records.
var CitationMUS = citationMUS{}

type citationMUS struct{}

func (citationMUS) Marshal(v Citation, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.SourcePaperID, bs[n:])
	n += ord.String.Marshal(v.TargetPaperID, bs[n:])
	n += ord.String.Marshal(v.TargetArxivID, bs[n:])
	n += ord.String.Marshal(v.TargetDOI, bs[n:])
	n += ord.String.Marshal(v.TargetTitle, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (citationMUS) Unmarshal(bs []byte) (v Citation, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.SourcePaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TargetPaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TargetArxivID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TargetDOI, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TargetTitle, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (citationMUS) Size(v Citation) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.SourcePaperID)
	size += ord.String.Size(v.TargetPaperID)
	size += ord.String.Size(v.TargetArxivID)
	size += ord.String.Size(v.TargetDOI)
	size += ord.String.Size(v.TargetTitle)
	size += sizeTime(v.CreatedAt)
	return size
}

// EntityLinkMUS serializes EntityLink records.
var EntityLinkMUS = entityLinkMUS{}

type entityLinkMUS struct{}

func (entityLinkMUS) Marshal(v EntityLink, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.PaperID, bs[n:])
	n += varint.Int.Marshal(int(v.EntityType), bs[n:])
	n += ord.String.Marshal(v.EntityName, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (entityLinkMUS) Unmarshal(bs []byte) (v EntityLink, n int, err error) {
	var (
		m   int
		typ int
	)
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.PaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if typ, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.EntityType = EntityType(typ)
	n += m
	if v.EntityName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (entityLinkMUS) Size(v EntityLink) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.PaperID)
	size += varint.Int.Size(int(v.EntityType))
	size += ord.String.Size(v.EntityName)
	size += sizeTime(v.CreatedAt)
	return size
}
