package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tansive/httprpc/internal/common/logtrace"
	"github.com/tansive/httprpc/pkg/httprpc"
	"github.com/tansive/httprpc/pkg/httprpc/signing"
)

var (
	// Call command flags
	callMethodFile   string
	callVerb         string
	callURL          string
	callURLKey       string
	callPaths        []string
	callFields       []string
	callQueries      []string
	callHeaders      []string
	callArgs         []string
	callBody         string
	callSets         []string
	callSignKeyFile  string
	callSigner       string
	callAsync        bool
	callText         bool
	callResultPath   string
	callTimeout      time.Duration
	callWait         time.Duration
	callOutput       string
	callStatusPolicy string
	callRequestID    string
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call [METHOD] [flags]",
	Short: "Call a remote method",
	Long: `Call a remote method and print its result.

With -f the method is looked up in a YAML method file and its parameters are bound by
name from --arg, --body, --set and --sign-key-file. Without -f the method is described by the
flags: placeholders from --path, form fields from --field, url fields from --query,
headers from --header and the body object from --body and --set, in that order.

Examples:
  # Call a declared method
  httprpc call -f payments.yaml pay --arg amount=100 --arg currency=EUR --sign-key-file secret

  # GET with a path placeholder and a query field
  httprpc call --url 'https://api.example.com/users/{id}' --path id=42 --field expand=orders

  # POST a JSON body to an endpoint resolved from the configuration
  httprpc call --verb POST_JSON --url-key users.create --body @user.json -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCall,
}

func init() {
	f := callCmd.Flags()
	f.StringVarP(&callMethodFile, "file", "f", "", "YAML method file declaring the method")
	f.StringVar(&callVerb, "verb", "GET", "HTTP verb: GET, POST or POST_JSON")
	f.StringVar(&callURL, "url", "", "URL template with {name} placeholders")
	f.StringVar(&callURLKey, "url-key", "", "Configuration key resolving the URL")
	f.StringArrayVar(&callPaths, "path", nil, "Path placeholder as name=value")
	f.StringArrayVar(&callFields, "field", nil, "Form field as name=value")
	f.StringArrayVar(&callQueries, "query", nil, "Field always sent in the URL as name=value")
	f.StringArrayVar(&callHeaders, "header", nil, "Header as name=value")
	f.StringArrayVar(&callArgs, "arg", nil, "Argument of a declared method as name=value")
	f.StringVar(&callBody, "body", "", "Body object as JSON, or @file to read it from a file")
	f.StringArrayVar(&callSets, "set", nil, "Set a body field as path=value, e.g. user.tags.0=admin")
	f.StringVar(&callSignKeyFile, "sign-key-file", "", "File holding the signing key")
	f.StringVar(&callSigner, "signer", signing.HS256, "Signature algorithm: "+strings.Join(signing.Algorithms(), ", "))
	f.BoolVar(&callAsync, "async", false, "Dispatch asynchronously and wait for the result")
	f.BoolVar(&callText, "text", false, "Return the response as text instead of decoding JSON")
	f.StringVar(&callResultPath, "result-path", "", "Select part of the JSON response, e.g. data.items")
	f.DurationVar(&callTimeout, "timeout", 0, "Request timeout (defaults to the client setting)")
	f.DurationVar(&callWait, "wait", time.Minute, "How long to wait for an asynchronous result")
	f.StringVarP(&callOutput, "output", "o", "json", "Output format: json, yaml or raw")
	f.StringVar(&callStatusPolicy, "status-policy", "", "Accepted response statuses: ok or 2xx")
	f.StringVar(&callRequestID, "request-id", "", "Request id sent in the X-Request-Id header")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	d, values, err := resolveCall(args)
	if err != nil {
		return err
	}

	opts, err := clientOptions()
	if err != nil {
		return err
	}
	if callStatusPolicy != "" {
		p, err := httprpc.ParseStatusPolicy(callStatusPolicy)
		if err != nil {
			return err
		}
		opts = append(opts, httprpc.WithStatusPolicy(p))
	}
	if callTimeout > 0 {
		opts = append(opts, httprpc.WithTimeout(callTimeout))
	}
	if d.RequiresSignature() {
		signer, err := signing.NewSigner(callSigner)
		if err != nil {
			return err
		}
		opts = append(opts, httprpc.WithSigner(signer))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if callRequestID != "" {
		ctx = logtrace.WithRequestID(ctx, callRequestID)
	}

	if traceCalls {
		hook, shutdown, err := newTraceHook(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		opts = append(opts, httprpc.WithHook(hook))
	}

	client := httprpc.NewClient(opts...)
	defer client.Close()

	result, err := dispatch(ctx, client, d, values)
	if err != nil {
		if code, ok := httprpc.RemoteStatus(err); ok && jsonOutput {
			printJSON(cmd.OutOrStdout(), map[string]any{"error": err.Error(), "status": code})
			return ErrAlreadyHandled
		}
		return err
	}
	if returnsNothing(d) {
		okLabel.Fprintf(cmd.OutOrStdout(), "[OK] ")
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", d.FullName())
		return nil
	}
	return printResult(cmd.OutOrStdout(), callOutput, result)
}

// resolveCall returns the descriptor to call and its arguments.
func resolveCall(args []string) (*httprpc.MethodDescriptor, []any, error) {
	body, err := readBody(callBody)
	if err != nil {
		return nil, nil, err
	}
	if body, err = applySets(body, callSets); err != nil {
		return nil, nil, err
	}
	var key any
	if callSignKeyFile != "" {
		data, err := os.ReadFile(callSignKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to read signing key: %w", err)
		}
		key = strings.TrimRight(string(data), "\r\n")
	}

	if callMethodFile == "" {
		if len(args) > 0 {
			return nil, nil, errors.New("a method name requires a method file (-f)")
		}
		return adHocMethod(body, key)
	}

	if len(args) == 0 {
		return nil, nil, errors.New("method name is required")
	}
	svc, err := LoadMethodFile(callMethodFile, envFiles...)
	if err != nil {
		return nil, nil, err
	}
	d, ok := svc.Lookup(args[0])
	if !ok {
		return nil, nil, fmt.Errorf("method %q is not declared in %s", args[0], callMethodFile)
	}
	named, err := parsePairs(callArgs)
	if err != nil {
		return nil, nil, err
	}
	values, err := bindNamed(d, named, body, key)
	if err != nil {
		return nil, nil, err
	}
	return d, values, nil
}

// bindNamed lines up named values with the parameters of d. Unset parameters are nil.
func bindNamed(d *httprpc.MethodDescriptor, named map[string]string, body, key any) ([]any, error) {
	params := d.Params()
	values := make([]any, len(params))
	bodyUsed := false
	for i, p := range params {
		switch p.Role {
		case httprpc.RoleURLPath, httprpc.RoleField, httprpc.RoleHeader:
			if v, ok := named[p.Name]; ok {
				values[i] = v
			}
		case httprpc.RoleBodyObject:
			if v, ok := named[p.Name]; ok && p.Name != "" {
				obj, err := readBody(v)
				if err != nil {
					return nil, fmt.Errorf("argument %s: %w", p.Name, err)
				}
				values[i] = obj
				continue
			}
			if !bodyUsed {
				values[i] = body
				bodyUsed = true
			}
		case httprpc.RoleSigningInput:
			values[i] = key
		}
	}
	return values, nil
}

// adHocMethod describes a method from the call flags.
func adHocMethod(body, key any) (*httprpc.MethodDescriptor, []any, error) {
	verb, err := httprpc.ParseVerb(callVerb)
	if err != nil {
		return nil, nil, err
	}
	m := httprpc.Method{
		Name:       "call",
		Verb:       verb,
		URL:        callURL,
		URLKey:     callURLKey,
		Async:      callAsync,
		ResultPath: callResultPath,
	}
	result := ResultJSON
	if callText {
		result = ResultText
	}
	if m.Returns, err = resultShape(result, callAsync, false); err != nil {
		return nil, nil, err
	}

	var values []any
	groups := []struct {
		pairs []string
		param func(string) httprpc.Param
	}{
		{callPaths, httprpc.PathParam},
		{callFields, httprpc.Field},
		{callQueries, httprpc.QueryField},
		{callHeaders, httprpc.HeaderParam},
	}
	for _, g := range groups {
		for _, pair := range g.pairs {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				return nil, nil, fmt.Errorf("expected name=value, got %q", pair)
			}
			m.Params = append(m.Params, g.param(name))
			values = append(values, value)
		}
	}
	if body != nil {
		m.Params = append(m.Params, httprpc.Body())
		values = append(values, body)
	}
	if key != nil {
		m.Params = append(m.Params, httprpc.SigningKey())
		values = append(values, key)
	}

	d, err := httprpc.Describe(m)
	if err != nil {
		return nil, nil, err
	}
	return d, values, nil
}

var (
	stringType = reflect.TypeFor[string]()
	voidType   = reflect.TypeFor[httprpc.Void]()
)

// returnsNothing reports whether a call of d produces no printable result.
func returnsNothing(d *httprpc.MethodDescriptor) bool {
	shape := d.ReturnShape()
	if d.HasInlineCallback() {
		return false
	}
	return shape.Kind == httprpc.ReturnVoid || shape.Inner == voidType
}

// dispatch calls d with the call API matching its declaration and waits for asynchronous
// results.
func dispatch(ctx context.Context, c *httprpc.Client, d *httprpc.MethodDescriptor, values []any) (any, error) {
	shape := d.ReturnShape()
	text := shape.Inner == stringType

	if !d.IsAsync() {
		switch {
		case shape.Kind == httprpc.ReturnVoid:
			return nil, httprpc.Invoke(ctx, c, d, values...)
		case text:
			return httprpc.Call[string](ctx, c, d, values...)
		}
		return httprpc.Call[any](ctx, c, d, values...)
	}

	waitCtx, cancel := context.WithTimeout(ctx, callWait)
	defer cancel()

	switch {
	case d.HasInlineCallback():
		type outcome struct {
			resp *httprpc.Response
			err  error
		}
		done := make(chan outcome, 1)
		err := httprpc.CallWithCallback[*httprpc.Response](ctx, c, d, httprpc.CallbackFunc[*httprpc.Response](func(resp *httprpc.Response, err error) {
			done <- outcome{resp, err}
		}), values...)
		if err != nil {
			return nil, err
		}
		select {
		case o := <-done:
			if o.err != nil {
				return nil, o.err
			}
			return decodeBody(o.resp.Body), nil
		case <-waitCtx.Done():
			return nil, httprpc.ErrAsyncTimeout.Err(waitCtx.Err())
		}
	case shape.Inner == voidType:
		_, err := httprpc.CallAsync[httprpc.Void](ctx, c, d, values...).Get(waitCtx)
		return nil, err
	case text:
		return httprpc.CallAsync[string](ctx, c, d, values...).Get(waitCtx)
	}
	return httprpc.CallAsync[any](ctx, c, d, values...).Get(waitCtx)
}
