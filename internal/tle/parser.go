package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Parse reads NORAD TLE text from r: 3-line entries (name, line 1, line 2)
// and bare 2-line entries may be mixed. Malformed entries are skipped with a
// warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	for i := 0; i+1 < len(lines); {
		var name, line1, line2 string
		switch {
		case isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			name, line1, line2 = strings.TrimPrefix(lines[i], "0 "), lines[i+1], lines[i+2]
			i += 3
		default:
			logger.Warn("skipping malformed TLE entry", "line_index", i, "line", lines[i])
			i++
			continue
		}

		entry, err := ParseLines(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", strings.TrimSpace(name), "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ParseFile reads a TLE file into a dataset.
func ParseFile(path string, logger *slog.Logger) (*TLEDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return NewDataset(path, entries), nil
}

// ParseLines builds an entry from a name (may be empty) and the two element
// lines, checking the NORAD ID, epoch, and line checksums.
func ParseLines(name, line1, line2 string) (TLEEntry, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if !isLine(line1, '1') || !isLine(line2, '2') {
		return TLEEntry{}, fmt.Errorf("element lines must start with \"1 \" and \"2 \"")
	}
	if len(line1) != 69 || len(line2) != 69 {
		return TLEEntry{}, fmt.Errorf("element lines must be 69 columns, got %d and %d", len(line1), len(line2))
	}
	for _, line := range []string{line1, line2} {
		if err := verifyChecksum(line); err != nil {
			return TLEEntry{}, err
		}
	}

	// NORAD ID from line1 cols 3-7 (0-indexed: 2..7).
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}
	if other := strings.TrimSpace(line2[2:7]); other != noradStr {
		return TLEEntry{}, fmt.Errorf("NORAD ID mismatch between lines: %q vs %q", noradStr, other)
	}

	// Epoch from line1 cols 19-32 (0-indexed: 18..32).
	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return TLEEntry{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = noradStr
	}
	return TLEEntry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

func isLine(s string, n byte) bool {
	return len(s) >= 2 && s[0] == n && s[1] == ' '
}

// verifyChecksum checks column 69: the sum of all digits in columns 1-68,
// counting '-' as 1, modulo 10.
func verifyChecksum(line string) error {
	sum := 0
	for _, r := range line[:68] {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r == '-':
			sum++
		}
	}
	want := int(line[68] - '0')
	if sum%10 != want {
		return fmt.Errorf("line %c checksum %d, computed %d", line[0], want, sum%10)
	}
	return nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
