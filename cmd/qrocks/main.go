// Command qrocks is a thin inspection CLI for the embedded-KV Backing
// Store: point lookups against its raw/hash/sorted-set key families,
// for debugging a data-room deployment without a general-purpose
// BadgerDB browser.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore/badger"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:   "qrocks",
		Short: "inspect a data-room Backing Store database",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "path to the BadgerDB data directory (storage.rocksdb_path)")
	root.AddCommand(getCmd(), hgetallCmd(), zrangeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*badger.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return badger.Open(dbPath)
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "print a raw value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			v, ok, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(hex.Dump(v))
			return nil
		},
	}
}

func hgetallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hgetall <key>",
		Short: "print all fields of a hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			fields, err := store.HGetAll(context.Background(), args[0])
			if err != nil {
				return err
			}
			for field, v := range fields {
				fmt.Printf("%s: %s\n", field, hex.EncodeToString(v))
			}
			return nil
		},
	}
}

func zrangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zrange <key> <lo> <hi>",
		Short: "print sorted-set members in a score range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lo: %w", err)
			}
			hi, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("hi: %w", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			members, err := store.ZRangeByScore(context.Background(), args[0], lo, hi)
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Println(m)
			}
			return nil
		},
	}
}
