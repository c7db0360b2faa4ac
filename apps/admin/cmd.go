package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword     // mockable
	migrateRunFunc   = database.RunMigration // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *database.DB
	usrSvc *user.Service
	exSvc  *exercise.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a migration command (up, down, status, ...)")
	fmt.Println("  adduser -name NAME -username USERNAME [-email EMAIL] [-admin] - create a user; the password is prompted next")
	fmt.Println("  addexercise -subject SUBJECT [-due RFC3339] [-order N] - add an exercise to the catalog")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. Optional.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	addExerciseCmd := flag.NewFlagSet("addexercise", flag.ExitOnError)
	addExerciseSubject := addExerciseCmd.String("subject", "", "The exercise subject.")
	addExerciseDue := addExerciseCmd.String("due", "", "Submission deadline, RFC3339. Optional.")
	addExerciseOrder := addExerciseCmd.Int("order", 0, "Display order.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, string(pwd), *addUserAdmin)
	case "addexercise":
		if err := addExerciseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addExerciseSubject == "" {
			addExerciseCmd.Usage()
			return errHelp
		}
		return cli.addExercise(*addExerciseSubject, *addExerciseDue, *addExerciseOrder)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	command := args[0]
	return migrateRunFunc(cli.db, command, args[1:]...)
}

func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if isAdmin {
		nu.Roles = user.AllRoles
	}
	if err := nu.Validate(cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	logger.Printf("user %q created\n", usr.Username)
	return nil
}

func (cli *commandLine) addExercise(subject, due string, order int) error {
	ne := exercise.NewExercise{Subject: subject, Order: order}
	if due != "" {
		dueDate, err := time.Parse(time.RFC3339, due)
		if err != nil {
			return err
		}
		ne.DueDate = null.TimeFrom(dueDate.UTC())
	}
	ex, err := cli.exSvc.Create(context.Background(), ne)
	if err != nil {
		return err
	}
	logger.Printf("exercise %q created\n", ex.Subject)
	return nil
}
