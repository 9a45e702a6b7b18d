package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"datanomics/app"
	"datanomics/domain/analysis"
	"datanomics/domain/stage"
	"datanomics/internal/stages"
	"datanomics/internal/transform"
)

// shell executes one command line at a time against a session controller
type shell struct {
	c         *app.Controller
	out       io.Writer
	exportDir string
}

type shellCommand struct {
	usage string
	help  string
	run   func(s *shell, ctx context.Context, args []string) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"help":     {"help", "list commands", (*shell).help},
		"stage":    {"stage", "show the current stage", (*shell).stage},
		"go":       {"go <stage|path>", "navigate to a stage", (*shell).goTo},
		"next":     {"next", "go to the next stage", (*shell).next},
		"back":     {"back", "go to the previous stage", (*shell).back},
		"upload":   {"upload <file>", "upload a .csv or .xlsx dataset", (*shell).upload},
		"preview":  {"preview", "show the first rows of the dataset", (*shell).preview},
		"clean":    {"clean <operation>", "apply a cleaning operation", (*shell).clean},
		"export":   {"export csv|xlsx [dir]", "write the dataset to a file", (*shell).export},
		"vars":     {"vars", "list chartable variables", (*shell).vars},
		"select":   {"select <variable>", "chart another variable", (*shell).selectVar},
		"charts":   {"charts", "list chart files", (*shell).charts},
		"test":     {"test <id> [key=value...]", "run a diagnostic test", (*shell).test},
		"model":    {"model [ols|var|arima]", "show or pick the model", (*shell).model},
		"assign":   {"assign <variable> endogenous|exogenous|available", "assign a variable role", (*shell).assign},
		"run":      {"run", "fit the selected model", (*shell).runModel},
		"report":   {"report [en|ar]", "generate or show the report", (*shell).report},
		"download": {"download en|ar [dir]", "write the report to a file", (*shell).download},
		"feedback": {"feedback <email> <rating> <message...>", "send feedback", (*shell).feedback},
		"count":    {"count", "show how many reports were generated", (*shell).count},
		"reset":    {"reset", "discard the session", (*shell).reset},
	}
}

func newShell(c *app.Controller, out io.Writer, exportDir string) *shell {
	return &shell{c: c, out: out, exportDir: exportDir}
}

// exec runs one line. quit is true for quit and exit.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "quit" || name == "exit" {
		return true, nil
	}
	cmd, ok := shellCommands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q, type help", name)
	}
	return false, cmd.run(s, ctx, args)
}

func (s *shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// enter activates name unless it is already active
func (s *shell) enter(ctx context.Context, name stage.StageName) error {
	if s.c.Current() == name {
		return nil
	}
	return s.c.Go(ctx, name).Err()
}

func (s *shell) help(_ context.Context, _ []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := shellCommands[name]
		s.printf("  %-52s %s\n", cmd.usage, cmd.help)
	}
	s.printf("  %-52s %s\n", "quit", "leave the shell")
	return nil
}

func (s *shell) stage(_ context.Context, _ []string) error {
	cur := s.c.Current()
	s.printf("%s (%s)\n", cur.Spec().Title, cur.Spec().Path)
	return nil
}

func (s *shell) report(ctx context.Context, args []string) error {
	if err := s.enter(ctx, stage.StageReport); err != nil {
		return err
	}
	if len(args) == 1 {
		lang, err := parseLanguage(args[0])
		if err != nil {
			return err
		}
		if text := s.c.Report.Text(lang); text != "" {
			s.printf("%s\n", text)
			return nil
		}
	}
	rep, err := s.c.Report.Generate(ctx)
	if err != nil {
		return err
	}
	s.printf("%s\n", rep.EnglishReport)
	return nil
}

func (s *shell) transition(t fmt.Stringer) {
	s.printf("%s\n", t)
}

func (s *shell) goTo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: go <stage|path>")
	}
	target := args[0]
	if strings.HasPrefix(target, "/") {
		s.transition(s.c.GoPath(ctx, target))
		return nil
	}
	name, err := stage.Parse(target)
	if err != nil {
		return err
	}
	s.transition(s.c.Go(ctx, name))
	return nil
}

func (s *shell) next(ctx context.Context, _ []string) error {
	s.transition(s.c.Next(ctx))
	return nil
}

func (s *shell) back(ctx context.Context, _ []string) error {
	s.transition(s.c.Back(ctx))
	return nil
}

func (s *shell) upload(ctx context.Context, args []string) error {
	if err := s.enter(ctx, stage.StageUpload); err != nil {
		return err
	}
	if len(args) != 1 {
		_, err := s.c.UploadFile(ctx, "", nil)
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := s.c.UploadFile(ctx, args[0], f)
	if err != nil {
		return err
	}
	s.printf("loaded %s: %d rows, columns %s\n", out.Session.Filename, len(out.Session.FullDataset), strings.Join(out.Session.Columns, ", "))
	for _, w := range out.Warnings {
		s.printf("  warning: %s\n", w)
	}
	return nil
}

func (s *shell) preview(ctx context.Context, _ []string) error {
	if err := s.enter(ctx, stage.StagePrepare); err != nil {
		return err
	}
	p := s.c.Prepare.Preview()
	if p.RowCount == 0 {
		s.printf("No data to display.\n")
		return nil
	}
	s.printf("Data Preview (%d rows)\n%s\n", p.RowCount, strings.Join(p.Columns, "\t"))
	for _, row := range p.Rows {
		cells := make([]string, len(p.Columns))
		for i, col := range p.Columns {
			v, _ := row.Get(col)
			cells[i] = transform.FieldString(v)
		}
		s.printf("%s\n", strings.Join(cells, "\t"))
	}
	return nil
}

func (s *shell) clean(ctx context.Context, args []string) error {
	if err := s.enter(ctx, stage.StagePrepare); err != nil {
		return err
	}
	if len(args) != 1 {
		for _, o := range stages.CleaningCatalog {
			s.printf("  %-18s %s\n", o.ID, o.Description)
		}
		return nil
	}
	rows, err := s.c.Prepare.Clean(ctx, analysis.CleaningOperation(args[0]))
	if err != nil {
		return err
	}
	s.printf("%s: %d rows\n", args[0], len(rows))
	return nil
}

func (s *shell) export(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: export csv|xlsx [dir]")
	}
	dir := s.exportDir
	if len(args) > 1 {
		dir = args[1]
	}
	var (
		path string
		err  error
	)
	switch args[0] {
	case "csv":
		path, err = s.c.Prepare.ExportCSV(dir)
	case "xlsx":
		path, err = s.c.Prepare.ExportXLSX(dir)
	default:
		return fmt.Errorf("unknown export format %q", args[0])
	}
	if err != nil {
		return err
	}
	s.printf("wrote %s\n", path)
	return nil
}

func (s *shell) vars(ctx context.Context, _ []string) error {
	if err := s.enter(ctx, stage.StageVisualize); err != nil {
		return err
	}
	s.c.Visualize.Wait()
	if err := s.c.Visualize.Err(); err != nil {
		return err
	}
	selected := s.c.Visualize.Selected()
	for _, v := range s.c.Visualize.Variables() {
		mark := " "
		if v == selected {
			mark = "*"
		}
		s.printf("%s %s\n", mark, v)
	}
	if stats := s.c.Visualize.Stats(); len(stats) > 0 {
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.printf("    %-6s %v\n", k, stats[k])
		}
	}
	return nil
}

func (s *shell) selectVar(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: select <variable>")
	}
	if err := s.enter(ctx, stage.StageVisualize); err != nil {
		return err
	}
	s.c.Visualize.Wait()
	if err := s.c.Visualize.Select(ctx, args[0]); err != nil {
		return err
	}
	return s.charts(ctx, nil)
}

func (s *shell) charts(ctx context.Context, _ []string) error {
	if err := s.enter(ctx, stage.StageVisualize); err != nil {
		return err
	}
	s.c.Visualize.Wait()
	for _, surface := range s.c.Visualize.Surfaces() {
		if p, ok := surface.(interface{ Path() string }); ok {
			s.printf("  %-12s %s\n", surface.Spec().Title, p.Path())
		}
	}
	return nil
}

func (s *shell) test(ctx context.Context, args []string) error {
	if err := s.enter(ctx, stage.StageDiagnose); err != nil {
		return err
	}
	if len(args) == 0 {
		for _, t := range stages.DiagnosticCatalog {
			s.printf("  %-16s %s\n", t.ID, t.Title)
		}
		return nil
	}
	params := map[string]interface{}{}
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("parameter %q is not key=value", kv)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = n
		} else {
			params[k] = v
		}
	}
	if len(params) == 0 {
		params = nil
	}
	res, err := s.c.Diagnose.Run(ctx, analysis.DiagnosticTest(args[0]), params)
	if err != nil {
		return err
	}
	s.printf("%s", stages.Format(res))
	return nil
}

func (s *shell) model(ctx context.Context, args []string) error {
	if err := s.enter(ctx, stage.StageModel); err != nil {
		return err
	}
	m := s.c.Model
	if len(args) == 1 {
		if err := m.SelectModel(analysis.ModelKind(args[0])); err != nil {
			return err
		}
	}
	s.printf("model:      %s\n", m.SelectedModel())
	s.printf("available:  %s\n", strings.Join(m.Available(), ", "))
	s.printf("endogenous: %s\n", strings.Join(m.Endogenous(), ", "))
	s.printf("exogenous:  %s\n", strings.Join(m.Exogenous(), ", "))
	return nil
}

func (s *shell) assign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: assign <variable> endogenous|exogenous|available")
	}
	if err := s.enter(ctx, stage.StageModel); err != nil {
		return err
	}
	return s.c.Model.Assign(args[0], stages.Role(args[1]))
}

func (s *shell) runModel(ctx context.Context, _ []string) error {
	if err := s.enter(ctx, stage.StageModel); err != nil {
		return err
	}
	res, err := s.c.Model.Run(ctx)
	if err != nil {
		return err
	}
	s.printf("%s\n", res)
	return nil
}

func (s *shell) download(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: download en|ar [dir]")
	}
	lang, err := parseLanguage(args[0])
	if err != nil {
		return err
	}
	dir := s.exportDir
	if len(args) > 1 {
		dir = args[1]
	}
	path, err := s.c.Report.Download(lang, dir)
	if err != nil {
		return err
	}
	s.printf("wrote %s\n", path)
	return nil
}

func (s *shell) feedback(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: feedback <email> <rating> <message...>")
	}
	if err := s.enter(ctx, stage.StageContact); err != nil {
		return err
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rating must be a number: %w", err)
	}
	err = s.c.Contact.Submit(ctx, analysis.Feedback{
		Email:   args[0],
		Subject: "Feedback",
		Message: strings.Join(args[2:], " "),
		Rating:  rating,
	})
	if err != nil {
		return err
	}
	s.printf("Thank you for your feedback!\n")
	return nil
}

func (s *shell) count(ctx context.Context, _ []string) error {
	if err := s.enter(ctx, stage.StageSupport); err != nil {
		return err
	}
	s.c.Support.Wait()
	s.printf("%d+ reports generated\n", s.c.Support.ReportCount())
	return nil
}

func (s *shell) reset(ctx context.Context, _ []string) error {
	if err := s.c.Reset(ctx); err != nil {
		return err
	}
	s.printf("session cleared\n")
	return nil
}

func parseLanguage(raw string) (stages.Language, error) {
	switch strings.ToLower(raw) {
	case "en", "english":
		return stages.English, nil
	case "ar", "arabic":
		return stages.Arabic, nil
	}
	return "", fmt.Errorf("unknown language %q, use en or ar", raw)
}
