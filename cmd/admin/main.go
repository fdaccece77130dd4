package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/config"
)

const usage = `Simple Blog Admin CLI

A maintenance tool that talks to the configured stores directly.

USAGE:
  admin <command> [options]

COMMANDS:
  list                 List posts with optional filtering
  stats                Count posts by status and author
  show <slug>          Show one post with its image URLs
  make-public <slug>   Grant public read on a post's featured image
  delete <slug>        Delete a post and its featured image

ENVIRONMENT VARIABLES:
  BLOG_DATABASE_URL    memory, postgres://... or sqlite://path (default: memory)
  BLOG_STORAGE_URL     memory://, file:///path or s3://bucket (default: memory)
  BLOG_DB_SCHEMA       PostgreSQL schema name

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  # List active posts
  admin list

  # List drafts of one author
  admin list --status=draft --author=8c6f...

  # List every post, paginated
  admin list --status=all --limit=10 --offset=20

  # Output as JSON
  admin list --json
  admin stats --json

OPTIONS (for list/stats):
  --status=<status>     active, inactive, draft or all (default: active)
  --author=<id>         Filter by author ID
  --limit=<n>           Maximum results (list only, default: 100)
  --offset=<n>          Pagination offset (list only, default: 0)
  --json                Output as JSON
`

type listFlags struct {
	status  string
	author  string
	limit   int
	offset  int
	useJSON bool
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	ctx := context.Background()
	serverConfig, err := config.Load(config.WithEnv("BLOG_"), config.WithEventLogging(false))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	stack, err := serverConfig.Build(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to build blog: %v", err)
	}
	defer stack.Close()
	blog := stack.Blog

	switch command {
	case "list":
		handleList(ctx, blog, parseFlags(os.Args[2:]))
	case "stats":
		flags := parseFlags(os.Args[2:])
		flags.status, flags.limit, flags.offset = "all", 0, 0
		handleStats(ctx, blog, flags)
	case "show", "make-public", "delete":
		if len(os.Args) < 3 {
			fmt.Printf("%s requires a slug\n\n", command)
			fmt.Print(usage)
			os.Exit(1)
		}
		handlePost(ctx, blog, command, os.Args[2])
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func parseFlags(args []string) listFlags {
	flags := listFlags{limit: 100}

	for _, arg := range args {
		if arg == "--json" {
			flags.useJSON = true
			continue
		}

		key, value := parseFlag(arg)
		switch key {
		case "status":
			flags.status = value
		case "author":
			flags.author = value
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				flags.limit = n
			}
		case "offset":
			if n, err := strconv.Atoi(value); err == nil {
				flags.offset = n
			}
		}
	}

	return flags
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		for i, c := range arg {
			if c == '=' {
				return arg[:i], arg[i+1:]
			}
		}
		return arg, "true"
	}
	return "", ""
}

func (f listFlags) options() []simpleblog.ListOption {
	var opts []simpleblog.ListOption
	switch f.status {
	case "":
	case "all":
		opts = append(opts, simpleblog.WithAnyStatus())
	default:
		s := simpleblog.PostStatus(f.status)
		if !s.Valid() {
			log.Fatalf("Invalid status: %s", f.status)
		}
		opts = append(opts, simpleblog.WithStatus(s))
	}
	if f.author != "" {
		opts = append(opts, simpleblog.WithAuthor(f.author))
	}
	if f.limit > 0 {
		opts = append(opts, simpleblog.WithLimit(f.limit))
	}
	if f.offset > 0 {
		opts = append(opts, simpleblog.WithOffset(f.offset))
	}
	return opts
}

func handleList(ctx context.Context, blog *simpleblog.Blog, flags listFlags) {
	posts, err := blog.Posts.List(ctx, flags.options()...).Unwrap()
	if err != nil {
		log.Fatalf("Failed to list posts: %v", err)
	}

	if flags.useJSON {
		printJSON(posts)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SLUG\tTITLE\tAUTHOR\tSTATUS\tIMAGE\tCREATED\n")
	for _, post := range posts {
		image := post.FeaturedImage
		if image == "" {
			image = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(post.Slug, 30),
			truncate(post.Title, 30),
			truncate(post.AuthorID, 11),
			post.Status,
			truncate(image, 11),
			post.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d", len(posts))
	if flags.limit > 0 && len(posts) == flags.limit {
		fmt.Printf(" (may have more, use --offset=%d to continue)", flags.offset+flags.limit)
	}
	fmt.Println()
}

// Statistics summarizes the post collection.
type Statistics struct {
	TotalCount int            `json:"total_count"`
	ByStatus   map[string]int `json:"by_status"`
	ByAuthor   map[string]int `json:"by_author"`
	WithImage  int            `json:"with_image"`
	Oldest     *time.Time     `json:"oldest,omitempty"`
	Newest     *time.Time     `json:"newest,omitempty"`
	ComputedAt time.Time      `json:"computed_at"`
}

func handleStats(ctx context.Context, blog *simpleblog.Blog, flags listFlags) {
	posts, err := blog.Posts.List(ctx, flags.options()...).Unwrap()
	if err != nil {
		log.Fatalf("Failed to list posts: %v", err)
	}

	stats := Statistics{
		ByStatus:   map[string]int{},
		ByAuthor:   map[string]int{},
		ComputedAt: time.Now().UTC(),
	}
	for _, post := range posts {
		stats.TotalCount++
		stats.ByStatus[string(post.Status)]++
		stats.ByAuthor[post.AuthorID]++
		if post.FeaturedImage != "" {
			stats.WithImage++
		}
		created := post.CreatedAt
		if stats.Oldest == nil || created.Before(*stats.Oldest) {
			stats.Oldest = &created
		}
		if stats.Newest == nil || created.After(*stats.Newest) {
			stats.Newest = &created
		}
	}

	if flags.useJSON {
		printJSON(stats)
		return
	}

	fmt.Println("=== Post Statistics ===")
	fmt.Printf("\nTotal Count: %d\n", stats.TotalCount)
	fmt.Printf("With Image:  %d\n", stats.WithImage)

	printCounts("By Status", stats.ByStatus)
	printCounts("By Author", stats.ByAuthor)

	if stats.Oldest != nil && stats.Newest != nil {
		fmt.Println("\nTime Range:")
		fmt.Printf("  Oldest: %s\n", stats.Oldest.Format(time.RFC3339))
		fmt.Printf("  Newest: %s\n", stats.Newest.Format(time.RFC3339))
	}

	fmt.Printf("\nComputed at: %s\n", stats.ComputedAt.Format(time.RFC3339))
}

func handlePost(ctx context.Context, blog *simpleblog.Blog, command, slug string) {
	post, err := blog.Posts.Get(ctx, slug).Unwrap()
	if err != nil {
		log.Fatalf("Failed to get post %s: %v", slug, err)
	}

	switch command {
	case "show":
		fallback := blog.Media.Fallback(ctx, post.FeaturedImage)
		printJSON(map[string]any{
			"post":        post,
			"preview_url": fallback.PreviewURL(),
			"view_url":    fallback.ViewURL(),
			"image_state": fallback.State().String(),
		})
	case "make-public":
		if post.FeaturedImage == "" {
			log.Fatalf("Post %s has no featured image", slug)
		}
		if !blog.Media.MakePublic(ctx, post.FeaturedImage) {
			log.Fatalf("Failed to make image %s public", post.FeaturedImage)
		}
		fmt.Printf("Image %s of %s is public\n", post.FeaturedImage, slug)
	case "delete":
		if _, err := blog.Authoring.Remove(ctx, slug).Unwrap(); err != nil {
			log.Fatalf("Failed to delete post %s: %v", slug, err)
		}
		fmt.Printf("Deleted %s\n", slug)
	}
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-36s: %d\n", truncate(k, 36), counts[k])
	}
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
