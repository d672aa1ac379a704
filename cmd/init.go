package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"

		if _, err := os.Stat(configFile); err == nil {
			fmt.Printf("config.yaml already exists.\n")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")

		fmt.Println("\n--- IMAP ---")
		imapServer := prompt(reader, "IMAP server (e.g. imap.gmail.com): ")
		imapUser := prompt(reader, "IMAP username: ")
		imapPass := prompt(reader, "IMAP password: ")
		imapFolder := prompt(reader, "IMAP folder (default INBOX): ")
		if imapFolder == "" {
			imapFolder = "INBOX"
		}

		fmt.Println("\n--- AI SERVICES ---")
		visionKey := prompt(reader, "Google Vision API key: ")
		openaiKey := prompt(reader, "OpenAI API key: ")

		fmt.Println("\n--- KAIPOKE ---")
		corpCode := prompt(reader, "Corporate code: ")
		kaipokeUser := prompt(reader, "Username: ")
		kaipokePass := prompt(reader, "Password: ")

		fmt.Println("\n--- FACILITIES ---")
		fmt.Println("Map each facility name on the forms to its Kaipoke menu label.")
		facilityName := prompt(reader, "Facility name: ")
		facilityMenu := prompt(reader, "Menu label: ")

		fmt.Println("\n--- NOTIFICATIONS (optional, leave empty to disable) ---")
		smtpServer := prompt(reader, "SMTP server: ")
		smtpUser := prompt(reader, "SMTP username: ")
		smtpPass := prompt(reader, "SMTP password: ")
		recipients := promptMulti(reader, "Report recipient email(s) (comma-separated): ")

		content := fmt.Sprintf(`imap:
  server: %s
  port: 993
  username: %s
  password: %s
  folder: %s

poll:
  interval: 30s
  cursor_file: cursor.json

vision:
  api_key: %s

openai:
  api_key: %s

kaipoke:
  corporate_code: %s
  username: %s
  password: %s
  era_offset: 2018
  headless: true

facilities:
  "%s": "%s"

smtp:
  server: %s
  port: 465
  security: ssl
  username: %s
  password: %s

notify:
  recipients:
%s
`, imapServer, imapUser, imapPass, imapFolder,
			visionKey, openaiKey,
			corpCode, kaipokeUser, kaipokePass,
			facilityName, facilityMenu,
			smtpServer, smtpUser, smtpPass,
			yamlList("    - ", recipients))

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Println("\n✅ config.yaml created successfully.")
		return nil
	},
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptMulti(r *bufio.Reader, label string) []string {
	raw := prompt(r, label)
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%s", prefix, v))
	}
	return strings.Join(lines, "\n")
}
