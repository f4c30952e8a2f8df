// Command peggy generates a Go parser from a PEG grammar, or just
// checks the grammar for errors.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/peggylang/peggy"
)

func main() {
	var (
		shortHelpFlag = flag.Bool("h", false, "show help page")
		longHelpFlag  = flag.Bool("help", false, "show help page")
		outputFlag    = flag.String("o", "", "output file, defaults to stdout")
		pkgFlag       = flag.String("package", "main", "package clause for the generated file")
		startFlag     = flag.String("start-rule", "", "start rule name, defaults to the grammar's first rule")
		cacheFlag     = flag.Bool("cache", false, "enable memoization in the generated parser")
		noBuildFlag   = flag.Bool("x", false, "do not generate code, only check the grammar")
	)
	flag.Usage = usage
	flag.Parse()

	if *shortHelpFlag || *longHelpFlag {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NArg() > 1 {
		argError(1, "expected one argument, got %q", strings.Join(flag.Args(), " "))
	}

	infile := ""
	if flag.NArg() == 1 {
		infile = flag.Arg(0)
	}
	name, rc := input(infile)
	defer rc.Close()

	text, err := io.ReadAll(rc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	opts := []peggy.Option{
		peggy.WithCache(*cacheFlag),
		peggy.WithDiagnosticSinks(
			func(pass, message string) { logrus.WithField("pass", pass).Info(message) },
			func(pass, message string) { logrus.WithField("pass", pass).Warn(message) },
		),
	}
	if *startFlag != "" {
		opts = append(opts, peggy.WithAllowedStartRules(*startFlag))
	}

	if *noBuildFlag {
		opts = append(opts, peggy.WithOutput(peggy.OutputAST))
		if _, err := peggy.Generate([]peggy.Source{{Name: name, Text: string(text)}}, opts...); err != nil {
			fmt.Fprintln(os.Stderr, "grammar error:", err)
			os.Exit(3)
		}
		return
	}

	opts = append(opts, peggy.WithOutput(peggy.OutputSource), peggy.WithPackageName(*pkgFlag))
	res, err := peggy.Generate([]peggy.Source{{Name: name, Text: string(text)}}, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "grammar error:", err)
		os.Exit(3)
	}

	out := output(*outputFlag)
	defer out.Close()
	if _, err := out.Write(res.Source); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		os.Exit(4)
	}
}

var usagePage = `usage: %s [options] [GRAMMAR_FILE]

peggy generates a Go parser from a PEG grammar. By default it reads
the grammar from stdin and writes the generated parser to stdout; if
GRAMMAR_FILE is given, the grammar is read from there instead.

	-h -help
		display this help message.
	-o OUTPUT_FILE
		write the generated parser to OUTPUT_FILE. Defaults to stdout.
	-package NAME
		package clause for the generated file. Defaults to "main".
	-start-rule NAME
		start rule to compile into the parser. Defaults to the
		grammar's first rule.
	-cache
		enable memoization in the generated parser.
	-x
		do not generate code, only check the grammar for errors.
`

func usage() {
	fmt.Printf(usagePage, os.Args[0])
}

func argError(exit int, msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg, args...)
	fmt.Fprintln(os.Stderr)
	flag.Usage()
	os.Exit(exit)
}

func input(filename string) (name string, rc io.ReadCloser) {
	name = "stdin"
	inf := os.Stdin
	if filename != "" {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		inf = f
		name = filename
	}
	r := bufio.NewReader(inf)
	return name, makeReadCloser(r, inf)
}

func output(filename string) io.WriteCloser {
	out := os.Stdout
	if filename != "" {
		f, err := os.Create(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(4)
		}
		out = f
	}
	return out
}

func makeReadCloser(r io.Reader, c io.Closer) io.ReadCloser {
	rc := struct {
		io.Reader
		io.Closer
	}{r, c}
	return io.ReadCloser(rc)
}
