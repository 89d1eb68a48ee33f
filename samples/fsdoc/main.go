// Copyright 2025 The Go Cloud Development Kit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fsdoc is a command-line tool for reading and writing documents through
// the gocloud.dev/fsdoc client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"gocloud.dev/fsdoc"
	"gocloud.dev/fsdoc/memfirestore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	// Import the transport packages we want to be able to open.
	_ "gocloud.dev/fsdoc/gcpfirestore"
)

const helpSuffix = `

  <client URL> names a database, for example
  "firestore://projects/myproject/databases/mydb" or
  "mem://myproject?filename=/tmp/docs.pb".
  To use a local server started with "fsdoc serve", set
  FIRESTORE_EMULATOR_HOST to its address and use a firestore:// URL.
  <document path> is a slash-separated path like "users/alice".
`

var (
	logger            = zap.NewNop()
	stdout  io.Writer = os.Stdout
)

func main() {
	verbose := flag.Bool("v", false, "log debug output to stderr")
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&getCmd{}, "")
	subcommands.Register(&createCmd{}, "")
	subcommands.Register(&setCmd{}, "")
	subcommands.Register(&updateCmd{}, "")
	subcommands.Register(&rmCmd{}, "")
	subcommands.Register(&lsCmd{}, "")
	subcommands.Register(&serveCmd{}, "")
	flag.Parse()

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fsdoc: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	status := subcommands.Execute(context.Background())
	_ = logger.Sync()
	os.Exit(int(status))
}

// openDoc opens the client named by the URL and returns the document at path.
func openDoc(ctx context.Context, clientURL, path string) (*fsdoc.Client, *fsdoc.DocumentRef, error) {
	c, err := fsdoc.OpenClient(ctx, clientURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open client: %v", err)
	}
	d := c.Doc(path)
	if d == nil {
		c.Close()
		return nil, nil, fmt.Errorf("%q is not a document path", path)
	}
	return c, d, nil
}

// readData returns the JSON object in arg, or read from stdin if arg is "-".
func readData(arg string, stdin io.Reader) (map[string]interface{}, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		arg = string(b)
	}
	return parseObject(arg)
}

func fail(msg string, err error) subcommands.ExitStatus {
	logger.Error(msg, zap.Error(err))
	fmt.Fprintf(os.Stderr, "fsdoc: %s: %v\n", msg, err)
	return subcommands.ExitFailure
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type getCmd struct {
	fields string
}

func (*getCmd) Name() string     { return "get" }
func (*getCmd) Synopsis() string { return "Print a document as JSON" }
func (*getCmd) Usage() string {
	return `get [-fields <paths>] <client URL> <document path>

  Print the document at <document path> as a JSON object, or "null" if it
  does not exist.

  Example:
    fsdoc get -fields name,address.city firestore://projects/p users/alice` + helpSuffix
}

func (cmd *getCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.fields, "fields", "", "comma-separated field paths to read; all fields if empty")
}

func (cmd *getCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("get", err)
	}
	defer c.Close()

	var opts *fsdoc.GetOptions
	if paths := splitList(cmd.fields); paths != nil {
		opts = &fsdoc.GetOptions{FieldPaths: paths}
	}
	snap, err := d.Get(ctx, opts)
	if err != nil {
		return fail("get", err)
	}
	if !snap.Exists() {
		fmt.Fprintln(stdout, "null")
		return subcommands.ExitSuccess
	}
	data, err := snap.Data()
	if err != nil {
		return fail("decode", err)
	}
	out, err := toJSON(data)
	if err != nil {
		return fail("render", err)
	}
	fmt.Fprintln(stdout, out)
	return subcommands.ExitSuccess
}

type createCmd struct{}

func (*createCmd) Name() string     { return "create" }
func (*createCmd) Synopsis() string { return "Create a document that must not exist" }
func (*createCmd) Usage() string {
	return `create <client URL> <document path> <JSON object | ->

  Create the document with the given fields. It is an error if the document
  exists. With "-", the object is read from stdin.

  Example:
    fsdoc create 'mem://p?filename=/tmp/docs.pb' users/alice '{"name": "Alice", "age": 30}'` + helpSuffix
}

func (*createCmd) SetFlags(_ *flag.FlagSet) {}

func (*createCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	data, err := readData(f.Arg(2), os.Stdin)
	if err != nil {
		return fail("parse", err)
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("create", err)
	}
	defer c.Close()
	wr, err := d.Create(ctx, data, nil)
	if err != nil {
		return fail("create", err)
	}
	logger.Info("created", zap.String("document", d.Path()), zap.Time("updateTime", wr.UpdateTime))
	return subcommands.ExitSuccess
}

type setCmd struct {
	mergeAll bool
	merge    string
}

func (*setCmd) Name() string     { return "set" }
func (*setCmd) Synopsis() string { return "Write a document, replacing or merging" }
func (*setCmd) Usage() string {
	return `set [-merge-all | -merge <paths>] <client URL> <document path> <JSON object | ->

  Write the document. Without merge flags the document is replaced.

  Example:
    fsdoc set -merge address.city 'mem://p?filename=/tmp/docs.pb' users/alice '{"address": {"city": "Oslo"}}'` + helpSuffix
}

func (cmd *setCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.mergeAll, "merge-all", false, "merge all given fields into the existing document")
	f.StringVar(&cmd.merge, "merge", "", "comma-separated field paths to merge")
}

func (cmd *setCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	data, err := readData(f.Arg(2), os.Stdin)
	if err != nil {
		return fail("parse", err)
	}
	opts := &fsdoc.SetOptions{MergeAll: cmd.mergeAll}
	for _, p := range splitList(cmd.merge) {
		opts.Merge = append(opts.Merge, p)
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("set", err)
	}
	defer c.Close()
	if _, err := d.Set(ctx, data, opts); err != nil {
		return fail("set", err)
	}
	return subcommands.ExitSuccess
}

type updateCmd struct {
	del        string
	serverTime string
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "Update fields of an existing document" }
func (*updateCmd) Usage() string {
	return `update [-delete <paths>] [-server-time <paths>] <client URL> <document path> [<JSON object | ->]

  Update fields of an existing document. Keys of the JSON object are dotted
  field paths, so {"address.city": "Oslo"} changes only the city.

  Example:
    fsdoc update -delete nickname -server-time seen 'mem://p?filename=/tmp/docs.pb' users/alice '{"age": 31}'` + helpSuffix
}

func (cmd *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.del, "delete", "", "comma-separated field paths to delete")
	f.StringVar(&cmd.serverTime, "server-time", "", "comma-separated field paths to set to the commit time")
}

func (cmd *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 && f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	updates := map[string]interface{}{}
	if f.NArg() == 3 {
		var err error
		if updates, err = readData(f.Arg(2), os.Stdin); err != nil {
			return fail("parse", err)
		}
	}
	for _, p := range splitList(cmd.del) {
		updates[p] = fsdoc.Delete
	}
	for _, p := range splitList(cmd.serverTime) {
		updates[p] = fsdoc.ServerTimestamp
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("update", err)
	}
	defer c.Close()
	if _, err := d.Update(ctx, updates, nil); err != nil {
		return fail("update", err)
	}
	return subcommands.ExitSuccess
}

type rmCmd struct {
	mustExist bool
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "Delete a document" }
func (*rmCmd) Usage() string {
	return `rm [-must-exist] <client URL> <document path>

  Delete the document. Deleting a missing document succeeds unless
  -must-exist is given.

  Example:
    fsdoc rm firestore://projects/p users/alice` + helpSuffix
}

func (cmd *rmCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.mustExist, "must-exist", false, "fail if the document does not exist")
}

func (cmd *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("rm", err)
	}
	defer c.Close()
	var opts *fsdoc.WriteOptions
	if cmd.mustExist {
		opts = &fsdoc.WriteOptions{Precondition: fsdoc.Exists(true)}
	}
	if _, err := d.Delete(ctx, opts); err != nil {
		return fail("rm", err)
	}
	return subcommands.ExitSuccess
}

type lsCmd struct {
	pageSize int
}

func (*lsCmd) Name() string     { return "ls" }
func (*lsCmd) Synopsis() string { return "List the subcollections of a document" }
func (*lsCmd) Usage() string {
	return `ls [-page-size <n>] <client URL> <document path>

  Print the ids of the collections directly under the document, one per line.

  Example:
    fsdoc ls firestore://projects/p users/alice` + helpSuffix
}

func (cmd *lsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&cmd.pageSize, "page-size", 0, "ids fetched per RPC; 0 for the service default")
}

func (cmd *lsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c, d, err := openDoc(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail("ls", err)
	}
	defer c.Close()
	refs, err := d.Collections(ctx, &fsdoc.ListOptions{PageSize: int32(cmd.pageSize)}).GetAll()
	if err != nil {
		return fail("ls", err)
	}
	for _, r := range refs {
		fmt.Fprintln(stdout, r.ID())
	}
	return subcommands.ExitSuccess
}

type serveCmd struct {
	addr     string
	filename string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "Serve an in-memory database over gRPC" }
func (*serveCmd) Usage() string {
	return `serve [-addr <host:port>] [-file <path>]

  Serve an in-memory database that speaks the Firestore protocol, for local
  development. Point clients at it with FIRESTORE_EMULATOR_HOST. With -file,
  documents are loaded from the file at start and saved to it on interrupt.

  Example:
    fsdoc serve -addr localhost:8086 -file /tmp/docs.pb` + helpSuffix
}

func (cmd *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.addr, "addr", "localhost:8086", "address to listen on")
	f.StringVar(&cmd.filename, "file", "", "file to load documents from and save them to")
}

func (cmd *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	t, err := memfirestore.NewTransport(&memfirestore.Options{Filename: cmd.filename, Logger: logger})
	if err != nil {
		return fail("serve", err)
	}
	lis, err := net.Listen("tcp", cmd.addr)
	if err != nil {
		return fail("serve", err)
	}
	srv := grpc.NewServer()
	memfirestore.RegisterServer(srv, t)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(lis) })
	g.Go(func() error {
		<-ctx.Done()
		srv.GracefulStop()
		return nil
	})
	logger.Info("serving", zap.String("addr", lis.Addr().String()))
	fmt.Fprintf(os.Stderr, "fsdoc: serving on %s\n", lis.Addr())
	if err := g.Wait(); err != nil {
		return fail("serve", err)
	}
	if err := t.Close(); err != nil {
		return fail("save", err)
	}
	return subcommands.ExitSuccess
}
