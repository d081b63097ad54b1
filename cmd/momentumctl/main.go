// Command momentumctl drives a momentum daemon over its control API,
// either once from the command line or interactively.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

const help = `commands:
  state | health
  music play <genre> | music playlist <id>... | music pause|resume|stop|skip | music volume <n>
  soundscape play <id> | soundscape pause|resume|stop|skip | soundscape volume <n>
  narration play <url> [seconds] [title] | narration pause|resume|stop | narration volume <n>
  session enter|exit
  stop
  help | quit`

func main() {
	addr := flag.String("addr", envOr("MOMENTUM_ADDR", "http://localhost:8080"), "daemon base URL")
	token := flag.String("token", os.Getenv("MOMENTUM_TOKEN"), "bearer token for the control API")
	flag.Parse()

	c := &client{base: strings.TrimRight(*addr, "/"), token: *token, http: &http.Client{Timeout: 10 * time.Second}}

	if flag.NArg() > 0 {
		if err := c.do(strings.Join(flag.Args(), " "), os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "momentum> ",
		HistoryFile:     historyFile(),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("connected to %s (type help)\n", c.base)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return
		case "help", "?":
			fmt.Println(help)
			continue
		}
		if err := c.do(line, rl.Stdout()); err != nil {
			fmt.Fprintln(rl.Stderr(), " [!]", err)
		}
	}
}

func completer() *readline.PrefixCompleter {
	channel := func(name string, extra ...readline.PrefixCompleterInterface) *readline.PrefixCompleter {
		items := []readline.PrefixCompleterInterface{
			readline.PcItem("play"), readline.PcItem("pause"), readline.PcItem("resume"),
			readline.PcItem("stop"), readline.PcItem("volume"),
		}
		return readline.PcItem(name, append(items, extra...)...)
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("state"),
		readline.PcItem("health"),
		channel("music", readline.PcItem("skip"), readline.PcItem("playlist")),
		channel("soundscape", readline.PcItem("skip")),
		channel("narration"),
		readline.PcItem("session", readline.PcItem("enter"), readline.PcItem("exit")),
		readline.PcItem("stop"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) do(line string, out io.Writer) error {
	r, err := parseLine(line)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(r.Method, c.base+r.Path, bytes.NewReader(r.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return errors.New(resp.Status)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + "/momentumctl_history"
}
