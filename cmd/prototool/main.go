// prototool parses, compiles, verifies, renders, and simulates
// protocol choreographies.
//
// Usage:
//
//	prototool parse [-yaml] [-f FILE]
//	prototool graph [-format json|yaml|dot|mermaid|html] [-verify] [-f FILE]
//	prototool verify [-yaml] [-f FILE]
//	prototool sim [-f FILE] [-limit N] [-choices a,b,c] [-script FILE]
//	              [-scheduler first|rr] [-maxloop N] [-expect FILE]
//
// The protocol source is read from FILE, or from stdin when -f is not
// given.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/onemanifold/SMPST-sub003/cfg"
	"github.com/onemanifold/SMPST-sub003/drive"
	"github.com/onemanifold/SMPST-sub003/parser"
	"github.com/onemanifold/SMPST-sub003/sim"
	"github.com/onemanifold/SMPST-sub003/tools"
	"github.com/onemanifold/SMPST-sub003/verify"

	"github.com/jsccast/yaml"
)

func main() {
	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "parse":
		err = cmdParse(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "sim":
		err = cmdSim(os.Args[2:])
	case "help", "-h", "--help":
		Usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func Usage() {
	fmt.Fprintf(os.Stderr, `prototool SUBCOMMAND [FLAGS]

Subcommands:

  parse    parse protocol source and print the AST
  graph    compile and print the control-flow graph
  verify   compile and check well-formedness
  sim      compile and run a simulation

Protocol source is read from -f FILE or stdin.
`)
}

func source(name string) (string, error) {
	if name == "" {
		bs, err := io.ReadAll(os.Stdin)
		return string(bs), err
	}
	bs, err := os.ReadFile(name)
	return string(bs), err
}

func emit(x interface{}, asYAML bool) error {
	var bs []byte
	var err error
	if asYAML {
		bs, err = yaml.Marshal(x)
	} else {
		bs, err = json.MarshalIndent(x, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Printf("%s\n", bs)
	return err
}

func cmdParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	file := fs.String("f", "", "protocol source file (default stdin)")
	asYAML := fs.Bool("yaml", false, "emit YAML instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := source(*file)
	if err != nil {
		return err
	}
	p, err := parser.Parse(src)
	if err != nil {
		return err
	}
	return emit(p, *asYAML)
}

func compileSource(file string) (*cfg.Graph, error) {
	src, err := source(file)
	if err != nil {
		return nil, err
	}
	p, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return cfg.Compile(p)
}

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	file := fs.String("f", "", "protocol source file (default stdin)")
	format := fs.String("format", "json", "json|yaml|dot|mermaid|html")
	withReport := fs.Bool("verify", false, "include the verification report (html only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := compileSource(*file)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		return emit(g, false)
	case "yaml":
		return emit(g, true)
	case "dot":
		return tools.Dot(g, os.Stdout, cfg.NoNode)
	case "mermaid":
		return tools.Mermaid(g, os.Stdout, nil)
	case "html":
		var report *verify.Report
		if *withReport {
			report = verify.Verify(g)
		}
		return tools.RenderHTML(g, report, os.Stdout)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("f", "", "protocol source file (default stdin)")
	asYAML := fs.Bool("yaml", false, "emit YAML instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := compileSource(*file)
	if err != nil {
		return err
	}
	report := verify.Verify(g)
	if err := emit(report, *asYAML); err != nil {
		return err
	}
	if !report.Valid {
		os.Exit(1)
	}
	return nil
}

// listChooser pops explicit choice labels, then falls back to the
// default option.
type listChooser struct {
	labels []string
}

func (c *listChooser) Choose(st *sim.State) (string, error) {
	if !st.AtChoice || len(c.labels) == 0 {
		return "", nil
	}
	label := c.labels[0]
	c.labels = c.labels[1:]
	return label, nil
}

func cmdSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	file := fs.String("f", "", "protocol source file (default stdin)")
	limit := fs.Int("limit", 100, "maximum number of steps")
	choices := fs.String("choices", "", "comma-separated choice labels, in order")
	script := fs.String("script", "", "ECMAScript chooser file")
	scheduler := fs.String("scheduler", "first", "parallel branch scheduling: first|rr")
	maxLoop := fs.Int("maxloop", 0, "bound on recursion traversals (0 = unbounded)")
	expect := fs.String("expect", "", "YAML expectation session to check the trace against")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := compileSource(*file)
	if err != nil {
		return err
	}

	conf := sim.Config{RecordTrace: true, MaxLoop: *maxLoop}
	switch *scheduler {
	case "first":
		conf.Scheduler = sim.FirstEligible
	case "rr":
		conf.Scheduler = sim.RoundRobin
	default:
		return fmt.Errorf("unknown scheduler %q", *scheduler)
	}

	var chooser sim.Chooser
	switch {
	case *script != "":
		src, err := os.ReadFile(*script)
		if err != nil {
			return err
		}
		c, err := drive.NewChooser(string(src))
		if err != nil {
			return err
		}
		chooser = c
	case *choices != "":
		chooser = &listChooser{labels: strings.Split(*choices, ",")}
	}

	s := sim.New(g, conf)
	events, runErr := s.Run(*limit, chooser)
	for _, ev := range events {
		js, err := json.Marshal(&ev)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", js)
	}
	if runErr != nil {
		return runErr
	}

	if *expect != "" {
		bs, err := os.ReadFile(*expect)
		if err != nil {
			return err
		}
		var session tools.Session
		if err := yaml.Unmarshal(bs, &session); err != nil {
			return err
		}
		if err := session.Check(s.Trace()); err != nil {
			return err
		}
		fmt.Println("expectations met")
	}

	return nil
}
