package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
)

// SectionVector is the embedding of one section, stored alongside the owning
// paper ID so semantic hits can be grouped by paper without a second lookup.
type SectionVector struct {
	SectionID string
	PaperID   string
	Vector    []float32
}

// SectionMatch is a semantic search hit.
type SectionMatch struct {
	SectionID string
	PaperID   string
	Score     float32
}

var float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)

// SectionVectorMUS serializes SectionVector records.
var SectionVectorMUS = sectionVectorMUS{}

type sectionVectorMUS struct{}

func (sectionVectorMUS) Marshal(v SectionVector, bs []byte) (n int) {
	n = ord.String.Marshal(v.SectionID, bs)
	n += ord.String.Marshal(v.PaperID, bs[n:])
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	return n
}

func (sectionVectorMUS) Unmarshal(bs []byte) (v SectionVector, n int, err error) {
	var m int
	if v.SectionID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.PaperID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = float32SliceMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (sectionVectorMUS) Size(v SectionVector) (size int) {
	size = ord.String.Size(v.SectionID)
	size += ord.String.Size(v.PaperID)
	size += float32SliceMUS.Size(v.Vector)
	return size
}
