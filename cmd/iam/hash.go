package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	pw "github.com/dropDatabas3/iam/internal/security/password"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Imprime el hash bcrypt de un password (lee stdin si no se pasa)",
		Args:  cobra.MaximumNArgs(1),
		// no necesita config ni base
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password requerido")
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if ok, reasons := pw.DefaultPolicy.Validate(plain); !ok {
				return errors.New(strings.Join(reasons, "; "))
			}
			h, err := pw.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}
}
