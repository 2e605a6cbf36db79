package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/logger"
)

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func (a *app) load() (*config.Root, *logrus.Logger, error) {
	c, err := config.Load(a.cfgFile, a.v)
	if err != nil {
		return nil, nil, err
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	log := logger.New(c.Pipeline.LogLvl, c.Pipeline.LogFormat)
	return c, log, nil
}

// bind maps a flag onto a config key; only flags the user sets override.
func (a *app) bind(cmd *cobra.Command, key, flag string) {
	if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	root := &cobra.Command{
		Use:           "claimlens",
		Short:         "Find checkable statements in recordings and score how confidently they were said",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default config/$CONFIG_ENV/config.yaml or ./config.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("outputs", "", "directory run folders are written to")
	if err := a.v.BindPFlag("pipeline.log_level", pf.Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := a.v.BindPFlag("paths.outputs", pf.Lookup("outputs")); err != nil {
		panic(err)
	}

	root.AddCommand(newRunCmd(a), newBatchCmd(a), newPushCmd(a), newRunsCmd(a), newConfigCmd(a))
	return root
}

func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		logrus.WithError(err).Error("claimlens failed")
	}
	return err
}
