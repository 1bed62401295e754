package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pet-persona/internal/domain"
	"pet-persona/internal/profile"
	"pet-persona/internal/service"
)

var (
	chatName    string
	chatKind    string
	chatBreed   string
	chatStories []string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with an in-memory pet built from the given stories",
	Long: `Creates a pet, learns its personality from --story flags and starts an interactive chat.
Commands inside the chat: /story <text> adds a story and updates the personality,
/voice prints the voice profile, /traits prints the current traits, /quit exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		persona, err := loadPersona()
		if err != nil {
			return err
		}
		return runChat(cmd, persona, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "Biscuit", "pet name")
	chatCmd.Flags().StringVar(&chatKind, "kind", string(domain.SubjectKindDog), "pet kind (dog or cat)")
	chatCmd.Flags().StringVar(&chatBreed, "breed", "", "pet breed")
	chatCmd.Flags().StringArrayVar(&chatStories, "story", nil, "story about the pet (repeatable)")
}

func runChat(cmd *cobra.Command, persona *service.PersonaService, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	subject, err := persona.CreateSubject(ctx, domain.Subject{
		Name:  chatName,
		Kind:  domain.SubjectKind(chatKind),
		Breed: chatBreed,
	})
	if err != nil {
		return err
	}
	res, err := persona.UpdatePersonality(ctx, profile.UpdateRequest{SubjectID: subject.ID, NewStories: chatStories})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s is ready (personality v%d, %d traits). Type /quit to exit.\n",
		subject.Name, res.Snapshot.Version, res.Snapshot.Vector.Len())

	sessionID := uuid.NewString()
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			if quit := handleLine(cmd, persona, subject, sessionID, line, out); quit {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func handleLine(cmd *cobra.Command, persona *service.PersonaService, subject domain.Subject, sessionID, line string, out io.Writer) bool {
	ctx := cmd.Context()
	switch {
	case line == "/quit":
		return true
	case strings.HasPrefix(line, "/story "):
		res, err := persona.UpdatePersonality(ctx, profile.UpdateRequest{
			SubjectID:  subject.ID,
			NewStories: []string{strings.TrimPrefix(line, "/story ")},
		})
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return false
		}
		fmt.Fprintf(out, "personality v%d from %s\n", res.Snapshot.Version, strings.Join(res.Components, ", "))
	case line == "/voice":
		vp, err := persona.VoiceProfile(ctx, subject.ID)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return false
		}
		fmt.Fprintln(out, vp.PersonaSummary)
		for _, s := range vp.ExamplePhrases {
			fmt.Fprintln(out, "  -", s)
		}
	case line == "/traits":
		snap, err := persona.CurrentPersonality(ctx, subject.ID)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return false
		}
		for _, ts := range snap.Vector.Top(snap.Vector.Len()) {
			fmt.Fprintf(out, "  %-14s %.3f (confidence %.2f)\n", ts.TraitID, ts.Score, ts.Confidence)
		}
	default:
		reply, err := persona.Chat(ctx, subject.ID, sessionID, line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return false
		}
		fmt.Fprintf(out, "%s [%s]\n", reply.Reply, reply.Intent)
	}
	return false
}
