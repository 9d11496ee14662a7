package probe

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Reply is a parsed SMTP reply, possibly spanning multiple wire lines.
type Reply struct {
	// Code is the three-digit reply code from the last line, or -1 when
	// the reply could not be parsed.
	Code int
	// Enhanced is the RFC 3463 enhanced status code ("x.y.z"), or empty.
	Enhanced string
	// Text is the raw reply with wire lines joined by '\n'.
	Text string
}

var enhancedCodeRe = regexp.MustCompile(`^\d\.\d\.\d$`)

// readReply reads one SMTP reply from the wire. A multi-line reply ends on
// the first line whose fourth character is not '-'; lines shorter than four
// characters also end the reply.
func readReply(r *bufio.Reader) (Reply, error) {
	var lines []string
	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return Reply{}, err
		}
		line := strings.TrimRight(raw, "\r\n")
		lines = append(lines, line)
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}
	return parseReply(lines), nil
}

// parseReply extracts the reply code and enhanced status code from the
// last line of a reply.
func parseReply(lines []string) Reply {
	reply := Reply{Code: -1, Text: strings.Join(lines, "\n")}
	if len(lines) == 0 {
		return reply
	}

	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) >= 3 {
		if code, err := strconv.Atoi(last[:3]); err == nil {
			reply.Code = code
		}
	}

	fields := strings.Fields(last)
	if len(fields) >= 2 && enhancedCodeRe.MatchString(fields[1]) {
		reply.Enhanced = fields[1]
	}

	return reply
}
