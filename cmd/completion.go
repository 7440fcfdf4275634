package cmd

import (
	"flag"

	"github.com/etnz/platelog/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion completes the command line in COMP_LINE, if set, and exits.
// Otherwise it returns and the program runs normally.
//
// To install it in bash: COMP_INSTALL=1 platelog
func Completion(name string) {
	completionCommand(flag.CommandLine).Complete(name)
}

// completionCommand describes the subcommands and their flags.
func completionCommand(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(global),
	}
	var names predict.Set
	for _, c := range Commands {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		root.Sub[c.Name()] = &complete.Command{Flags: flagPredictors(fs)}
		names = append(names, c.Name())
	}
	root.Sub["help"] = &complete.Command{Args: names}
	root.Sub["flags"] = &complete.Command{Args: names}
	root.Sub["commands"] = &complete.Command{}
	if topics, err := docs.GetAllTopics(); err == nil {
		root.Sub["topic"].Args = predict.Set(append(topics, "*"))
	}
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			flags[f.Name] = predict.Files("*")
		case "p":
			flags[f.Name] = predict.Set{"day", "week", "month", "year"}
		case "d", "s":
			flags[f.Name] = predict.Set{"0d", "-1d", "-1w", "-1m"}
		default:
			flags[f.Name] = predict.Nothing
		}
	})
	return flags
}
