package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errUsage = errors.New("usage")

// request is one API call derived from a REPL line.
type request struct {
	Method string
	Path   string
	Body   []byte
}

// parseLine turns "music play lofi hip hop" into a POST to
// /api/music/play with {"genre":"lofi hip hop"}.
func parseLine(line string) (request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return request{}, errUsage
	}

	switch fields[0] {
	case "state", "health":
		return request{Method: "GET", Path: "/api/" + fields[0]}, nil
	case "stop":
		return post("/api/stop", nil)
	case "session":
		if len(fields) != 2 || (fields[1] != "enter" && fields[1] != "exit") {
			return request{}, fmt.Errorf("%w: session enter|exit", errUsage)
		}
		return post("/api/session/"+fields[1], nil)
	case "music", "soundscape", "narration":
	default:
		return request{}, fmt.Errorf("%w: unknown command %q", errUsage, fields[0])
	}

	if len(fields) < 2 {
		return request{}, fmt.Errorf("%w: %s <action>", errUsage, fields[0])
	}
	ch, action, rest := fields[0], fields[1], fields[2:]
	path := "/api/" + ch + "/" + action

	switch action {
	case "pause", "resume", "stop":
		return post(path, nil)
	case "skip":
		if ch == "narration" {
			return request{}, fmt.Errorf("%w: narration cannot skip", errUsage)
		}
		return post(path, nil)
	case "volume":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("%w: %s volume <0-100>", errUsage, ch)
		}
		v, err := strconv.Atoi(rest[0])
		if err != nil {
			return request{}, fmt.Errorf("%w: volume must be a number", errUsage)
		}
		return post(path, map[string]any{"volume": v})
	case "playlist":
		if ch != "music" || len(rest) == 0 {
			return request{}, fmt.Errorf("%w: music playlist <id>...", errUsage)
		}
		return post(path, map[string]any{"tracks": rest})
	case "play":
		if len(rest) == 0 {
			return request{}, fmt.Errorf("%w: %s play <what>", errUsage, ch)
		}
		switch ch {
		case "music":
			return post(path, map[string]any{"genre": strings.Join(rest, " ")})
		case "soundscape":
			return post(path, map[string]any{"id": strings.Join(rest, " ")})
		default:
			args := map[string]any{"url": rest[0]}
			if len(rest) > 1 {
				d, err := strconv.ParseFloat(rest[1], 64)
				if err != nil {
					return request{}, fmt.Errorf("%w: narration play <url> [seconds] [title]", errUsage)
				}
				args["duration"] = d
			}
			if len(rest) > 2 {
				args["title"] = strings.Join(rest[2:], " ")
			}
			return post(path, args)
		}
	}
	return request{}, fmt.Errorf("%w: unknown %s action %q", errUsage, ch, action)
}

func post(path string, body map[string]any) (request, error) {
	r := request{Method: "POST", Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return request{}, err
		}
		r.Body = data
	}
	return r, nil
}
