package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lendcore/gateway/middleware"
	"lendcore/native/bank"
	"lendcore/native/bank/spell"
	"lendcore/native/oracle"
)

const (
	encodeCommand  = "encode"
	tokenCommand   = "token"
	publishCommand = "publish-price"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case encodeCommand:
		err = runEncode(os.Args[2:], os.Stdout)
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout, time.Now())
	case publishCommand:
		err = runPublish(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bankctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  encode method:arg[:arg] ...   encode household calls; several calls are batched")
	fmt.Fprintln(w, "  token -secret S -sub ADDR      mint a gateway bearer token")
	fmt.Fprintln(w, "  publish-price -asset A -price P publish a price to the redis feed")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Household methods:")
	for _, sig := range spell.Methods() {
		fmt.Fprintf(w, "  %s\n", sig)
	}
}

func runEncode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(encodeCommand, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one call required, e.g. borrow:0x...:100")
	}
	calls := make([][]byte, 0, fs.NArg())
	for _, raw := range fs.Args() {
		call, err := encodeCall(raw)
		if err != nil {
			return err
		}
		calls = append(calls, call)
	}
	data := calls[0]
	if len(calls) > 1 {
		var err error
		if data, err = spell.Batch(calls...); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out, hexutil.Encode(data))
	return err
}

// encodeCall parses "method:token:amount" or, for the native helpers,
// "method:amount". An amount of "max" selects bank.MaxAmount.
func encodeCall(raw string) ([]byte, error) {
	parts := strings.Split(raw, ":")
	method := parts[0]
	switch len(parts) {
	case 2:
		amount, err := parseAmount(parts[1])
		if err != nil {
			return nil, err
		}
		return spell.Encode(method, amount)
	case 3:
		if !common.IsHexAddress(parts[1]) {
			return nil, fmt.Errorf("%s: invalid token %q", method, parts[1])
		}
		amount, err := parseAmount(parts[2])
		if err != nil {
			return nil, err
		}
		return spell.Encode(method, common.HexToAddress(parts[1]), amount)
	default:
		return nil, fmt.Errorf("malformed call %q", raw)
	}
}

func parseAmount(raw string) (*big.Int, error) {
	if strings.EqualFold(raw, "max") {
		return new(big.Int).Set(bank.MaxAmount), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

func runToken(args []string, out io.Writer, now time.Time) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("LENDCORE_JWT_SECRET"), "HMAC secret shared with bankd")
	sub := fs.String("sub", "", "caller address carried as the token subject")
	scope := fs.String("scope", "", "space-separated scopes, e.g. admin")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !common.IsHexAddress(*sub) {
		return fmt.Errorf("invalid subject %q", *sub)
	}
	token, err := middleware.MintToken(middleware.TokenRequest{
		Secret:   *secret,
		Issuer:   *issuer,
		Audience: *audience,
		Subject:  common.HexToAddress(*sub),
		Scopes:   strings.Fields(*scope),
		TTL:      *ttl,
	}, now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runPublish(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(publishCommand, flag.ContinueOnError)
	addr := fs.String("redis", "localhost:6379", "redis address")
	password := fs.String("password", os.Getenv("LENDCORE_REDIS_PASSWORD"), "redis password")
	db := fs.Int("db", 0, "redis database")
	asset := fs.String("asset", "", "asset address")
	price := fs.String("price", "", "decimal price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !common.IsHexAddress(*asset) {
		return fmt.Errorf("invalid asset %q", *asset)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	feed, err := oracle.NewRedis(ctx, oracle.RedisConfig{Addr: *addr, Password: *password, DB: *db})
	if err != nil {
		return err
	}
	defer feed.Close()
	if err := feed.Publish(ctx, common.HexToAddress(*asset), *price, time.Now()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "published %s = %s\n", common.HexToAddress(*asset).Hex(), *price)
	return err
}
