package pipeline

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 依次尝试按换行、句点、空格切分，最后按单个字符硬切。
var DefaultSeparators = []string{"\n", ".", " ", ""}

// RecursiveSplitter 把文本切成不超过 ChunkSize 个字符（Unicode 码点）的块，
// 相邻块之间最多保留 ChunkOverlap 个字符的重叠。
//
// 分隔符保留在其后一段的开头；超长片段会用剩余的分隔符递归切分。
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewRecursiveSplitter 使用默认分隔符创建切分器。
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	return &RecursiveSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split 返回去除首尾空白后的非空块，顺序与原文一致。空文本返回空切片。
func (s *RecursiveSplitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	chunks := s.split(text, seps)
	if chunks == nil {
		return []string{}
	}
	return chunks
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	var final []string

	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge 把小片段拼成块。分隔符已经保留在片段里，所以拼接时不再插入。
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize {
			if len(current) > 0 {
				if doc, ok := joinChunk(current); ok {
					docs = append(docs, doc)
				}
				// 从头部弹出，直到剩余部分不超过重叠长度且能容纳新片段
				for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
					total -= runeLen(current[0])
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc, ok := joinChunk(current); ok {
		docs = append(docs, doc)
	}
	return docs
}

func joinChunk(pieces []string) (string, bool) {
	doc := strings.TrimSpace(strings.Join(pieces, ""))
	return doc, doc != ""
}

// splitKeepingSeparator 按 sep 切分，sep 附在后一段开头；sep 为空时按字符切分。空片段被丢弃。
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for i, w := 0, 0; i < len(text); i += w {
			_, w = utf8.DecodeRuneInString(text[i:])
			pieces = append(pieces, text[i:i+w])
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, p := range parts[1:] {
		pieces = append(pieces, sep+p)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
