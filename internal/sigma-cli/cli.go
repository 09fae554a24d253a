// Package sigmacli is the command line interface of the sigma tools: it
// generates Schnorr key pairs, proves knowledge of their discrete logarithm
// and verifies the resulting non-interactive proofs.
package sigmacli

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/drand/kyber"

	"github.com/drand/sigma/common"
	"github.com/drand/sigma/common/log"
	"github.com/drand/sigma/crypto"
	"github.com/drand/sigma/internal/entropy"
	"github.com/drand/sigma/internal/metrics"
	"github.com/drand/sigma/internal/store"
	"github.com/drand/sigma/nizk"
	"github.com/drand/sigma/sigma/schnorr"
)

var setVersionPrinter sync.Once

const refreshRate = 500 * time.Millisecond

func banner(w io.Writer) {
	_, _ = fmt.Fprintf(w, "sigma %s (date %v, commit %v)\n", common.GetAppVersion(), common.BUILDDATE, common.COMMIT)
}

var folderFlag = &cli.StringFlag{
	Name:    "folder",
	Value:   store.DefaultBaseFolder(),
	Usage:   "Folder to keep the key pair and the config, with absolute path.",
	EnvVars: []string{"SIGMA_FOLDER"},
}

var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Usage:   "If set, verbosity is at the debug level",
	EnvVars: []string{"SIGMA_VERBOSE"},
}

var configFlag = &cli.StringFlag{
	Name: "config",
	Usage: "TOML config with the Group, Hash, Context (hex) and Attempts of the session. " +
		"Defaults to " + ConfigFileName + " in the folder when it exists.",
	EnvVars: []string{"SIGMA_CONFIG"},
}

var groupFlag = &cli.StringFlag{
	Name:    "group",
	Usage:   fmt.Sprintf("Group of the key pair, one of %v.", crypto.ListGroups()),
	EnvVars: []string{"SIGMA_GROUP"},
}

var hashFlag = &cli.StringFlag{
	Name:    "hash",
	Usage:   fmt.Sprintf("Hash function deriving the challenges, one of %v.", crypto.ListHashes()),
	EnvVars: []string{"SIGMA_HASH"},
}

var contextFlag = &cli.StringFlag{
	Name:  "context",
	Usage: "Session context the proof is bound to, as plain text.",
}

var attemptsFlag = &cli.IntFlag{
	Name:  "attempts",
	Usage: "Maximum number of tries when a challenge is not a scalar.",
}

var messageFlag = &cli.StringFlag{
	Name: "message",
	Usage: "Message the proof is bound to. When verifying, it replaces the " +
		"message stored in the proof file.",
}

var shortFlag = &cli.BoolFlag{
	Name:  "short",
	Usage: "Produce a short proof, carrying the challenge instead of the commitment.",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "Save the proof into a file instead of stdout.",
}

var instanceFlag = &cli.StringFlag{
	Name:  "instance",
	Usage: "Instance TOML file to verify against, instead of the one of the folder.",
}

var roundsFlag = &cli.IntFlag{
	Name:    "rounds",
	Aliases: []string{"n"},
	Value:   16,
	Usage:   "Number of proofs of each kind to generate and verify.",
}

var sourceFlag = &cli.StringFlag{
	Name:  "source",
	Usage: "File whose content is used as additional entropy when drawing witnesses and nonces.",
}

var userEntropyOnlyFlag = &cli.BoolFlag{
	Name: "user-source-only",
	Usage: "Used with the source flag, only the user's entropy is used (not mixed with crypto/rand). " +
		"Makes runs reproducible, for testing and debugging only.",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics",
	Usage: "Serve the metrics at the specified (host:)port while the bench runs.",
}

var workersFlag = &cli.IntFlag{
	Name:  "workers",
	Value: 1,
	Usage: "Number of goroutines sharing the session during the bench.",
}

var appCommands = []*cli.Command{
	{
		Name:  "keygen",
		Usage: "Generate a witness and the instance proving its knowledge.",
		Flags: toArray(folderFlag, verboseFlag, configFlag, groupFlag, sourceFlag, userEntropyOnlyFlag),
		Action: func(c *cli.Context) error {
			banner(errWriter(c))
			return keygenCmd(c)
		},
	},
	{
		Name:  "prove",
		Usage: "Prove knowledge of the witness of the folder.",
		Flags: toArray(folderFlag, verboseFlag, configFlag, groupFlag, hashFlag,
			contextFlag, attemptsFlag, messageFlag, shortFlag, outFlag, sourceFlag, userEntropyOnlyFlag),
		Action: func(c *cli.Context) error {
			return proveCmd(c)
		},
	},
	{
		Name:      "verify",
		Usage:     "Verify a proof file against the instance of the folder.",
		ArgsUsage: "<proof.json> is the file written by the prove command",
		Flags:     toArray(folderFlag, verboseFlag, instanceFlag, messageFlag),
		Action: func(c *cli.Context) error {
			return verifyCmd(c)
		},
	},
	{
		Name:  "show",
		Usage: "Show the instance of the folder, its label and the session config.",
		Flags: toArray(folderFlag, verboseFlag, configFlag, groupFlag, hashFlag, contextFlag, attemptsFlag),
		Action: func(c *cli.Context) error {
			return showCmd(c)
		},
	},
	{
		Name:  "bench",
		Usage: "Generate and verify proofs with an ephemeral key pair and print the collected metrics.",
		Flags: toArray(verboseFlag, configFlag, folderFlag, groupFlag, hashFlag, contextFlag, attemptsFlag,
			roundsFlag, workersFlag, metricsFlag, sourceFlag, userEntropyOnlyFlag),
		Action: func(c *cli.Context) error {
			return benchCmd(c)
		},
	},
}

// CLI returns the sigma app
func CLI() *cli.App {
	app := cli.NewApp()
	app.Name = "sigma"

	setVersionPrinter.Do(func() {
		cli.VersionPrinter = func(c *cli.Context) {
			banner(c.App.Writer)
		}
	})

	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = common.GetAppVersion().String()
	app.Usage = "non-interactive zero-knowledge proofs of discrete logarithm"
	appComm := make([]*cli.Command, len(appCommands))
	for i, p := range appCommands {
		v := *p
		v.Before = attachLogger
		appComm[i] = &v
	}
	app.Commands = appComm
	return app
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}

// attachLogger stores the logger of the command on its context.
func attachLogger(c *cli.Context) error {
	level := log.InfoLevel
	if c.Bool(verboseFlag.Name) {
		level = log.DebugLevel
	}
	l := log.New(zapcore.Lock(zapcore.AddSync(errWriter(c))), level, false)
	c.Context = log.ToContext(c.Context, l)
	return nil
}

func contextLogger(c *cli.Context) log.Logger {
	return log.FromContextOrDefault(c.Context)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter == nil {
		return os.Stderr
	}
	return c.App.ErrWriter
}

func folderPath(c *cli.Context, name string) string {
	return filepath.Join(c.String(folderFlag.Name), name)
}

func randomStream(c *cli.Context) (cipher.Stream, error) {
	return entropy.NewStream(c.String(sourceFlag.Name), c.Bool(userEntropyOnlyFlag.Name), contextLogger(c))
}

func newSession(c *cli.Context, instance *schnorr.Instance, hash crypto.HashFunction, ctx []byte) (*schnorr.NIZK, error) {
	return schnorr.NewNIZK(instance, hash.Func(), ctx, nizk.WithLogger(contextLogger(c)))
}

func keygenCmd(c *cli.Context) error {
	conf, err := contextToConfig(c)
	if err != nil {
		return err
	}
	g, _, err := conf.Suite()
	if err != nil {
		return err
	}

	st := fileStore(c)
	if _, err := st.LoadInstance(); err == nil {
		fmt.Fprintf(c.App.Writer, "Key pair already present in `%s`.\nRemove it before generating a new one\n", st.Folder())
		return nil
	} else if !errors.Is(err, store.ErrAbsent) {
		return err
	}

	rand, err := randomStream(c)
	if err != nil {
		return err
	}
	key, instance := schnorr.KeyPair(g, rand)
	if err := st.SaveKeyPair(&schnorr.Witness{Group: g, Key: key}, instance); err != nil {
		return fmt.Errorf("could not save key pair: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(st.Folder(), store.KeyFolderName))
	if err != nil {
		return fmt.Errorf("err getting full path: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Generated key pair at", absPath)
	return printTOML(c.App.Writer, instance.TOML())
}

func proveCmd(c *cli.Context) error {
	conf, err := contextToConfig(c)
	if err != nil {
		return err
	}
	witness, instance, err := fileStore(c).LoadKeyPair()
	if err != nil {
		return fmt.Errorf("loading key pair: %w", err)
	}
	if err := sameGroup(c, conf, instance); err != nil {
		return err
	}
	_, h, err := conf.Suite()
	if err != nil {
		return err
	}
	session, err := newSession(c, instance, h, conf.ContextBytes())
	if err != nil {
		return err
	}

	var msg []byte
	if c.IsSet(messageFlag.Name) {
		msg = []byte(c.String(messageFlag.Name))
	}
	pf := &ProofFile{
		Version:    common.GetAppVersion().String(),
		Group:      instance.Group.String(),
		Hash:       h.String(),
		Context:    conf.ContextBytes(),
		HasMessage: msg != nil,
		Message:    msg,
	}

	rand, err := randomStream(c)
	if err != nil {
		return err
	}
	if c.Bool(shortFlag.Name) {
		proof, err := nizk.Retry(conf.Attempts, func() (*schnorr.ShortProof, error) {
			return session.ShortProof(witness.Key, msg, rand)
		})
		if err != nil {
			return err
		}
		pf.Kind = nizk.KindShort
		if pf.Proof, err = session.MarshalShort(proof); err != nil {
			return err
		}
	} else {
		proof, err := nizk.Retry(conf.Attempts, func() (*schnorr.BatchableProof, error) {
			return session.BatchableProof(witness.Key, msg, rand)
		})
		if err != nil {
			return err
		}
		pf.Kind = nizk.KindBatchable
		if pf.Proof, err = session.MarshalBatchable(proof); err != nil {
			return err
		}
	}

	if c.IsSet(outFlag.Name) {
		if err := saveProofFile(c.String(outFlag.Name), pf); err != nil {
			return fmt.Errorf("can't save proof to %s: %w", c.String(outFlag.Name), err)
		}
		fmt.Fprintln(c.App.Writer, "Proof saved to", c.String(outFlag.Name))
		return nil
	}
	return writeProofFile(c.App.Writer, pf)
}

// sameGroup rejects a group set explicitly which is not the one of instance.
func sameGroup(c *cli.Context, conf *Config, instance *schnorr.Instance) error {
	if !c.IsSet(groupFlag.Name) && c.String(configFlag.Name) == "" {
		return nil
	}
	g, err := crypto.GetGroupByNameWithDefault(conf.Group)
	if err != nil {
		return err
	}
	if g.String() != instance.Group.String() {
		return fmt.Errorf("configured group %s but the key pair lives in %s", g, instance.Group)
	}
	return nil
}

func verifyCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("verify expects exactly one argument, the proof file")
	}
	pf, err := loadProofFile(c.Args().First())
	if err != nil {
		return err
	}

	var instance *schnorr.Instance
	if c.IsSet(instanceFlag.Name) {
		instance = new(schnorr.Instance)
		err = store.Load(c.String(instanceFlag.Name), instance)
	} else {
		instance, err = fileStore(c).LoadInstance()
	}
	if err != nil {
		return fmt.Errorf("loading instance: %w", err)
	}

	g, err := crypto.GroupFromName(pf.Group)
	if err != nil {
		return err
	}
	if g.String() != instance.Group.String() {
		return fmt.Errorf("proof in group %s but instance in %s", g, instance.Group)
	}
	h, err := crypto.HashFromName(pf.Hash)
	if err != nil {
		return err
	}
	session, err := newSession(c, instance, h, pf.Context)
	if err != nil {
		return err
	}

	msg := pf.message()
	if c.IsSet(messageFlag.Name) {
		msg = []byte(c.String(messageFlag.Name))
	}

	switch pf.Kind {
	case nizk.KindShort:
		proof, err := session.UnmarshalShort(pf.Proof)
		if err != nil {
			return err
		}
		err = session.ShortVerify(proof, msg)
		if err != nil {
			return err
		}
	default:
		proof, err := session.UnmarshalBatchable(pf.Proof)
		if err != nil {
			return err
		}
		if err := session.BatchableVerify(proof, msg); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.App.Writer, "%s proof valid\n", pf.Kind)
	return nil
}

func showCmd(c *cli.Context) error {
	conf, err := contextToConfig(c)
	if err != nil {
		return err
	}
	instance, err := fileStore(c).LoadInstance()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "# instance")
	if err := printTOML(c.App.Writer, instance.TOML()); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "# label", schnorr.New(instance).Label())
	fmt.Fprintln(c.App.Writer, "# config")
	return printTOML(c.App.Writer, conf)
}

func benchCmd(c *cli.Context) error {
	conf, err := contextToConfig(c)
	if err != nil {
		return err
	}
	rounds := c.Int(roundsFlag.Name)
	if rounds < 1 {
		return fmt.Errorf("rounds must be positive, got %d", rounds)
	}
	workers := c.Int(workersFlag.Name)
	if workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", workers)
	}
	g, h, err := conf.Suite()
	if err != nil {
		return err
	}
	stream, err := randomStream(c)
	if err != nil {
		return err
	}
	rand := &lockedStream{Stream: stream}
	key, instance := schnorr.KeyPair(g, rand)
	session, err := newSession(c, instance, h, conf.ContextBytes())
	if err != nil {
		return err
	}

	if bind := c.String(metricsFlag.Name); bind != "" {
		l, err := metrics.Start(contextLogger(c), bind)
		if err != nil {
			return err
		}
		defer l.Close()
	}

	var done uint64
	s := spinner.New(spinner.CharSets[9], refreshRate, spinner.WithWriter(errWriter(c)))
	s.PreUpdate = func(spin *spinner.Spinner) {
		spin.Suffix = fmt.Sprintf("  proved and verified %d/%d rounds", atomic.LoadUint64(&done), rounds)
	}
	s.Start()
	defer s.Stop()

	jobs := make(chan int)
	eg, ctx := errgroup.WithContext(c.Context)
	eg.Go(func() error {
		defer close(jobs)
		for i := 0; i < rounds; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	start := time.Now()
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for i := range jobs {
				if err := benchRound(session, key, []byte(fmt.Sprintf("bench %d", i)), conf.Attempts, rand); err != nil {
					return err
				}
				atomic.AddUint64(&done, 1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	s.Stop()
	fmt.Fprintf(c.App.Writer, "%d rounds on %d workers in %s with %s over %s\n", rounds, workers, time.Since(start), h, g)
	return metrics.WriteSummary(c.App.Writer)
}

// benchRound proves and verifies msg once with each kind of proof.
func benchRound(session *schnorr.NIZK, key kyber.Scalar, msg []byte, attempts int, rand cipher.Stream) error {
	bp, err := nizk.Retry(attempts, func() (*schnorr.BatchableProof, error) {
		return session.BatchableProof(key, msg, rand)
	})
	if err != nil {
		return err
	}
	if err := session.BatchableVerify(bp, msg); err != nil {
		return err
	}
	sp, err := nizk.Retry(attempts, func() (*schnorr.ShortProof, error) {
		return session.ShortProof(key, msg, rand)
	})
	if err != nil {
		return err
	}
	return session.ShortVerify(sp, msg)
}

// lockedStream shares a stream between the bench workers.
type lockedStream struct {
	sync.Mutex
	cipher.Stream
}

func (l *lockedStream) XORKeyStream(dst, src []byte) {
	l.Lock()
	defer l.Unlock()
	l.Stream.XORKeyStream(dst, src)
}

func printTOML(w io.Writer, v interface{}) error {
	var buff bytes.Buffer
	if err := toml.NewEncoder(&buff).Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buff.Bytes())
	return err
}
