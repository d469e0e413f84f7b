package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	logLevel     string
	logComponent string
	logGrep      string
	logLines     int
)

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: GroupOps,
	Short:   "Tail and filter orange.log",
	Args:    cobra.NoArgs,
	RunE:    runLog,
}

func init() {
	logCmd.Flags().StringVar(&logLevel, "level", "", "only show lines at or above this level")
	logCmd.Flags().StringVar(&logComponent, "component", "", "only show lines from this component")
	logCmd.Flags().StringVar(&logGrep, "grep", "", "only show lines whose message matches this regexp")
	logCmd.Flags().IntVar(&logLines, "lines", 200, "number of trailing lines to scan")
	rootCmd.AddCommand(logCmd)
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	path := a.home + "/orange.log"

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no log file yet")
			return nil
		}
		return err
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading log: %w", err)
	}

	if logLines > 0 && len(all) > logLines {
		all = all[len(all)-logLines:]
	}

	minRank := -1
	if logLevel != "" {
		r, ok := levelRank[logLevel]
		if !ok {
			return fmt.Errorf("unknown level %q", logLevel)
		}
		minRank = r
	}

	var grep *regexp.Regexp
	if logGrep != "" {
		grep, err = regexp.Compile(logGrep)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	for _, line := range all {
		rendered, ok := renderLogLine(line, minRank, grep)
		if !ok {
			continue
		}
		fmt.Println(rendered)
	}
	return nil
}

// renderLogLine decodes one JSON log line and formats it as
// "ts level component: msg field=value ...", applying the level/component/
// grep predicates. It returns ok=false for lines that don't pass a filter.
// A line that fails to parse is returned verbatim with ok=true, so nothing
// is dropped.
func renderLogLine(line string, minRank int, grep *regexp.Regexp) (string, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return line, true
	}

	level, _ := fields["level"].(string)
	if minRank >= 0 && levelRank[level] < minRank {
		return "", false
	}
	component, _ := fields["component"].(string)
	if logComponent != "" && component != logComponent {
		return "", false
	}
	msg, _ := fields["msg"].(string)
	if grep != nil && !grep.MatchString(msg) {
		return "", false
	}

	ts := formatTimestamp(fields["ts"])
	var extras []string
	for k, v := range fields {
		switch k {
		case "ts", "level", "msg", "component":
			continue
		}
		extras = append(extras, fmt.Sprintf("%s=%v", k, v))
	}

	out := fmt.Sprintf("%s %-5s %s: %s", ts, level, component, msg)
	if len(extras) > 0 {
		out += " " + strings.Join(extras, " ")
	}
	return out, true
}

func formatTimestamp(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "-"
	}
	return time.Unix(int64(f), 0).UTC().Format(time.RFC3339)
}
