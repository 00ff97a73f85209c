// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/poiesic/ronbun/core"
)

// MarshalPaper serializes a Paper to bytes.
func MarshalPaper(paper *core.Paper) []byte {
	buf := make([]byte, core.PaperMUS.Size(*paper))
	core.PaperMUS.Marshal(*paper, buf)
	return buf
}

// UnmarshalPaper deserializes a Paper from bytes.
func UnmarshalPaper(data []byte) (*core.Paper, error) {
	paper, _, err := core.PaperMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// MarshalSection serializes a Section to bytes.
func MarshalSection(section *core.Section) []byte {
	buf := make([]byte, core.SectionMUS.Size(*section))
	core.SectionMUS.Marshal(*section, buf)
	return buf
}

// UnmarshalSection deserializes a Section from bytes.
func UnmarshalSection(data []byte) (*core.Section, error) {
	section, _, err := core.SectionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// MarshalExtraction serializes an Extraction to bytes.
func MarshalExtraction(extraction *core.Extraction) []byte {
	buf := make([]byte, core.ExtractionMUS.Size(*extraction))
	core.ExtractionMUS.Marshal(*extraction, buf)
	return buf
}

// UnmarshalExtraction deserializes an Extraction from bytes.
func UnmarshalExtraction(data []byte) (*core.Extraction, error) {
	extraction, _, err := core.ExtractionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &extraction, nil
}

// MarshalCitation serializes a Citation to bytes.
func MarshalCitation(citation *core.Citation) []byte {
	buf := make([]byte, core.CitationMUS.Size(*citation))
	core.CitationMUS.Marshal(*citation, buf)
	return buf
}

// UnmarshalCitation deserializes a Citation from bytes.
func UnmarshalCitation(data []byte) (*core.Citation, error) {
	citation, _, err := core.CitationMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &citation, nil
}

// MarshalSectionVector serializes a SectionVector to bytes.
func MarshalSectionVector(vec *core.SectionVector) []byte {
	buf := make([]byte, core.SectionVectorMUS.Size(*vec))
	core.SectionVectorMUS.Marshal(*vec, buf)
	return buf
}

// UnmarshalSectionVector deserializes a SectionVector from bytes.
func UnmarshalSectionVector(data []byte) (*core.SectionVector, error) {
	vec, _, err := core.SectionVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &vec, nil
}

// MarshalEntityLink serializes an EntityLink to bytes.
func MarshalEntityLink(link *core.EntityLink) []byte {
	buf := make([]byte, core.EntityLinkMUS.Size(*link))
	core.EntityLinkMUS.Marshal(*link, buf)
	return buf
}

// UnmarshalEntityLink deserializes an EntityLink from bytes.
func UnmarshalEntityLink(data []byte) (*core.EntityLink, error) {
	link, _, err := core.EntityLinkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
