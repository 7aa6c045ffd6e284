package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationRE     = regexp.MustCompile(`PT(\d+H)?(\d+M)?(\d+S)?`)
	linkVideoIDRE  = regexp.MustCompile(`(?:v=|youtu\.be/|shorts/)([\w-]+)`)
	embedVideoIDRE = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/)([^&/?]+)`)
	channelIDRE    = regexp.MustCompile(`channel/(UC[\w-]+)`)
	handleRE       = regexp.MustCompile(`@([\w.-]+)`)
)

// ParseDuration converts an ISO 8601 duration such as PT1H2M3S. Anything it
// cannot read is zero.
func ParseDuration(iso string) time.Duration {
	m := durationRE.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	part := func(s string) int64 {
		if s == "" {
			return 0
		}
		n, _ := strconv.ParseInt(s[:len(s)-1], 10, 64)
		return n
	}
	return time.Duration(part(m[1])*3600+part(m[2])*60+part(m[3])) * time.Second
}

// IsShort reports whether a video of duration d counts as a Short: 60s plus
// one second of slack.
func IsShort(d time.Duration) bool {
	return d > 0 && d <= 61*time.Second
}

// IsLive reports whether liveBroadcastContent marks a stream.
func IsLive(liveBroadcastContent string) bool {
	return liveBroadcastContent == "live" || liveBroadcastContent == "upcoming"
}

// EngagementRate is (likes+comments)/views in percent with two decimals.
func EngagementRate(views, likes, comments int64) string {
	rate := 0.0
	if views > 0 {
		rate = float64(likes+comments) / float64(views) * 100
	}
	return fmt.Sprintf("%.2f", rate)
}

// stripShare drops share tracking such as ?si=… and any extra query pairs.
func stripShare(q string) string {
	q = strings.SplitN(q, "?si=", 2)[0]
	return strings.SplitN(q, "&", 2)[0]
}

// ExtractVideoID finds the video id in watch, youtu.be, shorts and embed links.
func ExtractVideoID(link string) string {
	if m := embedVideoIDRE.FindStringSubmatch(stripShare(link)); m != nil {
		return m[1]
	}
	return ""
}

func linkVideoID(s string) string {
	if m := linkVideoIDRE.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ChannelID returns the UC… id from a /channel/ link.
func ChannelID(s string) string {
	if m := channelIDRE.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// Handle returns the @handle in s, including the @.
func Handle(s string) string {
	if m := handleRE.FindStringSubmatch(s); m != nil {
		return m[0]
	}
	return ""
}

// atoi reads the decimal counts the API sends as strings.
func atoi(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// leadingInt parses the leading integer of s and falls back to def when
// there is none or it is zero.
func leadingInt(s string, def int64) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n == 0 {
		return def
	}
	return n
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
