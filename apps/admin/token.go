package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/syllabus/core"
)

func (cli *commandLine) token(username, email string, isAdmin bool, expires time.Duration) error {
	p := core.Person{ID: uuid.New().String(), Username: username, Email: email}
	token, err := cli.auth.GenerateToken(cli.auth.NewClaims(p, isAdmin, expires))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
