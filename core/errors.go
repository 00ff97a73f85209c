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

import "errors"

// Domain validation errors
var (
	// ErrInvalidArxivID indicates an arXiv identifier failed validation.
	ErrInvalidArxivID = errors.New("invalid arxiv id")

	// ErrIllegalTransition indicates a paper status transition is not
	// permitted by the lifecycle state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrInvalidPaper indicates a Paper failed validation.
	ErrInvalidPaper = errors.New("invalid paper")

	// ErrInvalidSection indicates a Section failed validation.
	ErrInvalidSection = errors.New("invalid section")

	// ErrInvalidExtraction indicates an Extraction failed validation.
	ErrInvalidExtraction = errors.New("invalid extraction")

	// ErrEmptyName indicates a required name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyContent indicates a required content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)
