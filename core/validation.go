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


package core

import (
	"fmt"
	"regexp"
)

// arxivIDPattern matches modern arXiv identifiers like "2401.15884",
// optionally carrying a version suffix ("2401.15884v2").
var arxivIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)

// NormalizeArxivID validates an arXiv identifier and strips any version
// suffix. Returns ErrInvalidArxivID for anything that does not look like a
// modern arXiv ID.
func NormalizeArxivID(id string) (string, error) {
	m := arxivIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidArxivID, id)
	}
	return m[1], nil
}

// ValidatePaper validates a Paper according to domain rules.
//
// Validation rules:
//   - ArxivID must be a normalized arXiv identifier
//   - Status must be one of the defined lifecycle states
//
// NOT validated (populated by pipeline stages):
//   - Title/Authors/Abstract/Categories (empty until the metadata stage)
//   - IngestedAt (zero until ready)
func ValidatePaper(paper *Paper) error {
	if paper == nil {
		return fmt.Errorf("%w: paper is nil", ErrInvalidPaper)
	}
	if _, err := NormalizeArxivID(paper.ArxivID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, err)
	}
	if _, ok := statusNames[paper.Status]; !ok {
		return fmt.Errorf("%w: status %d", ErrInvalidPaper, paper.Status)
	}
	return nil
}

// ValidateSection validates a Section according to domain rules.
func ValidateSection(section *Section) error {
	if section == nil {
		return fmt.Errorf("%w: section is nil", ErrInvalidSection)
	}
	if section.PaperID == "" {
		return fmt.Errorf("%w: paper id missing", ErrInvalidSection)
	}
	if section.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrEmptyContent)
	}
	if section.Position < 0 {
		return fmt.Errorf("%w: position %d", ErrInvalidSection, section.Position)
	}
	return nil
}

// ValidateExtraction validates an Extraction according to domain rules.
func ValidateExtraction(extraction *Extraction) error {
	if extraction == nil {
		return fmt.Errorf("%w: extraction is nil", ErrInvalidExtraction)
	}
	if extraction.PaperID == "" {
		return fmt.Errorf("%w: paper id missing", ErrInvalidExtraction)
	}
	if extraction.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidExtraction, ErrEmptyName)
	}
	if _, ok := extractionTypeNames[extraction.Type]; !ok {
		return fmt.Errorf("%w: type %d", ErrInvalidExtraction, extraction.Type)
	}
	return nil
}
