package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/ronbun/core"
)

// Key prefixes for different data types
const (
	paperPrefix           = "paprec"  // paprec:<id> -> Paper
	paperArxivPrefix      = "paparx"  // paparx:<arxivID> -> paper ID
	paperCreatedPrefix    = "papcre"  // papcre:<timestamp><id> -> paper ID
	sectionPrefix         = "secrec"  // secrec:<id> -> Section
	sectionPaperPrefix    = "secpap"  // secpap:<paperID>:<position> -> section ID
	extractionPrefix      = "extrec"  // extrec:<id> -> Extraction
	extractionPaperPrefix = "extpap"  // extpap:<paperID>:<extractionID> -> extraction ID
	citationPrefix        = "citrec"  // citrec:<id> -> Citation
	citationSourcePrefix  = "citsrc"  // citsrc:<sourcePaperID>:<citationID> -> citation ID
	citationTargetPrefix  = "cittgt"  // cittgt:<targetPaperID>:<citationID> -> citation ID
	citationArxivPrefix   = "citarx"  // citarx:<targetArxivID>:<citationID> -> citation ID
	linkPrefix            = "lnkrec"  // lnkrec:<id> -> EntityLink
	linkPaperPrefix       = "lnkpap"  // lnkpap:<paperID>:<linkID> -> link ID
	linkEntityPrefix      = "lnkent"  // lnkent:<type>:<len><name>:<paperID> -> paper ID
	vectorPrefix          = "vecrec"  // vecrec:<sectionID> -> SectionVector
	vectorPaperPrefix     = "vecpap"  // vecpap:<paperID>:<sectionID> -> section ID
	termPrefix            = "trmrec"  // trmrec:<domain>:<token><docID> -> posting
)

// Keyword index domains.
const (
	termDomainPaper      = "pap"
	termDomainSection    = "sec"
	termDomainExtraction = "ext"
)

func makePaperKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", paperPrefix, id))
}

func makePaperArxivKey(arxivID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", paperArxivPrefix, arxivID))
}

// makePaperCreatedKey generates a composite key for the creation-time index.
// The timestamp is written in BigEndian order so lexicographic sort follows
// chronological order; the paper ID breaks ties.
func makePaperCreatedKey(createdAt time.Time, id string) []byte {
	prefix := []byte(paperCreatedPrefix + ":")
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

func makeSectionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sectionPrefix, id))
}

// makeSectionPaperKey generates a composite key for the per-paper section
// index, ordered by position.
func makeSectionPaperKey(paperID string, position int) []byte {
	prefix := []byte(fmt.Sprintf("%s:%s:", sectionPaperPrefix, paperID))
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(position))
	return buf
}

func makeSectionPaperPrefix(paperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", sectionPaperPrefix, paperID))
}

func makeExtractionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", extractionPrefix, id))
}

func makeExtractionPaperKey(paperID, extractionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", extractionPaperPrefix, paperID, extractionID))
}

func makeExtractionPaperPrefix(paperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", extractionPaperPrefix, paperID))
}

func makeCitationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", citationPrefix, id))
}

func makeCitationSourceKey(sourcePaperID, citationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", citationSourcePrefix, sourcePaperID, citationID))
}

func makeCitationSourcePrefix(sourcePaperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", citationSourcePrefix, sourcePaperID))
}

func makeCitationTargetKey(targetPaperID, citationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", citationTargetPrefix, targetPaperID, citationID))
}

func makeCitationTargetPrefix(targetPaperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", citationTargetPrefix, targetPaperID))
}

func makeCitationArxivKey(targetArxivID, citationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", citationArxivPrefix, targetArxivID, citationID))
}

func makeCitationArxivPrefix(targetArxivID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", citationArxivPrefix, targetArxivID))
}

func makeLinkKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", linkPrefix, id))
}

func makeLinkPaperKey(paperID, linkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", linkPaperPrefix, paperID, linkID))
}

func makeLinkPaperPrefix(paperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", linkPaperPrefix, paperID))
}

// makeLinkEntityKey generates a composite key for the entity lookup index.
// The entity name is length-prefixed like keyword tokens, so a name that
// happens to extend another one never matches its prefix scan.
func makeLinkEntityKey(entityType core.EntityType, entityName, paperID string) []byte {
	prefix := makeLinkEntityPrefix(entityType, entityName)
	buf := make([]byte, len(prefix)+len(paperID))
	offset := copy(buf, prefix)
	copy(buf[offset:], paperID)
	return buf
}

func makeLinkEntityPrefix(entityType core.EntityType, entityName string) []byte {
	head := []byte(fmt.Sprintf("%s:%s:", linkEntityPrefix, entityType.String()))
	var lenBuf [binary.MaxVarintLen64]byte
	lenSize := binary.PutUvarint(lenBuf[:], uint64(len(entityName)))
	buf := make([]byte, len(head)+lenSize+len(entityName)+1)
	offset := copy(buf, head)
	offset += copy(buf[offset:], lenBuf[:lenSize])
	offset += copy(buf[offset:], entityName)
	buf[offset] = ':'
	return buf
}

func makeVectorKey(sectionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorPrefix, sectionID))
}

func makeVectorPaperKey(paperID, sectionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", vectorPaperPrefix, paperID, sectionID))
}

func makeVectorPaperPrefix(paperID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", vectorPaperPrefix, paperID))
}

// makeTermKey generates a composite key for a keyword posting. The token is
// length-prefixed so tokens that are prefixes of other tokens never collide
// on scans.
func makeTermKey(domain, token, docID string) []byte {
	prefix := makeTermPrefix(domain, token)
	buf := make([]byte, len(prefix)+len(docID))
	offset := copy(buf, prefix)
	copy(buf[offset:], docID)
	return buf
}

func makeTermPrefix(domain, token string) []byte {
	head := []byte(fmt.Sprintf("%s:%s:", termPrefix, domain))
	var lenBuf [binary.MaxVarintLen64]byte
	lenSize := binary.PutUvarint(lenBuf[:], uint64(len(token)))
	buf := make([]byte, len(head)+lenSize+len(token))
	offset := copy(buf, head)
	offset += copy(buf[offset:], lenBuf[:lenSize])
	copy(buf[offset:], token)
	return buf
}
