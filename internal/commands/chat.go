package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/chat"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// ChatCommand returns the CLI command for chatting with the model
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the configured LLM",
		Subcommands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Send a message, continuing the latest session unless told otherwise",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session id to continue",
					},
					&cli.BoolFlag{
						Name:  "new",
						Usage: "Start a new session",
					},
				},
				Action: chatSendAction,
			},
			{
				Name:      "history",
				Usage:     "List sessions, or show the messages of one",
				ArgsUsage: "[session-id]",
				Action:    chatHistoryAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session",
				ArgsUsage: "<session-id>",
				Action:    chatDeleteAction,
			},
			{
				Name:   "clear",
				Usage:  "Delete every session",
				Action: chatClearAction,
			},
		},
	}
}

func chatSendAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return cli.Exit("chat send needs a message", 1)
	}
	if err := application.RequireLLM(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	history := application.Chat.History()
	sessionID := c.String("session")
	if sessionID == "" && !c.Bool("new") {
		if sessions := history.LoadAll(c.Context); len(sessions) > 0 {
			sessionID = sessions[0].ID
		}
	}
	if sessionID == "" {
		session, err := application.Chat.NewSession(c.Context, chat.TitleFrom(text))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		sessionID = session.ID
	}

	_, err = application.Chat.Send(c.Context, sessionID, text, func(chunk string) error {
		utils.Plain(chunk)
		return nil
	})
	utils.Plain("\n")
	if errors.Is(err, chat.ErrSessionNotFound) {
		return cli.Exit(fmt.Sprintf("no chat session with id %s", sessionID), 1)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	utils.PrintKeyValue("Session", sessionID)
	return nil
}

func chatHistoryAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	history := application.Chat.History()

	if c.NArg() == 0 {
		sessions := history.LoadAll(c.Context)
		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, []string{
				s.ID,
				utils.Truncate(s.Title, 50),
				strconv.Itoa(len(s.Messages)),
				formatMillis(s.Timestamp),
			})
		}
		utils.PrintTable("Chat sessions", []string{"ID", "Title", "Messages", "Updated"}, rows)
		return nil
	}

	session := history.LoadByID(c.Context, c.Args().First())
	if session == nil {
		return cli.Exit(fmt.Sprintf("no chat session with id %s", c.Args().First()), 1)
	}
	utils.PrintHeading(session.Title)
	for _, m := range session.Messages {
		utils.PrintDivider()
		utils.PrintKeyValue(string(m.Role), formatMillis(m.Timestamp))
		if m.Role == chat.RoleAssistant {
			utils.Plain(utils.RenderMarkdown(m.Content, 100))
		} else {
			utils.Plain(m.Content + "\n")
		}
	}
	return nil
}

func chatDeleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("chat delete needs a session id", 1)
	}
	id := c.Args().First()
	if !application.Chat.History().Delete(c.Context, id) {
		return cli.Exit(fmt.Sprintf("no chat session with id %s was deleted", id), 1)
	}
	utils.PrintSuccess("Deleted " + id)
	return nil
}

func chatClearAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if !application.Chat.History().ClearAll(c.Context) {
		return cli.Exit("chat history could not be cleared", 1)
	}
	utils.PrintSuccess("Chat history cleared")
	return nil
}
