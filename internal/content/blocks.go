package content

import (
	"github.com/jomei/notionapi"
)

// Constructors for the block variants the converter emits. Every block is
// returned as a pointer so callers can type-switch on *notionapi.XBlock.

func basic(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

func paragraphBlock(rt []notionapi.RichText) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: basic(notionapi.BlockTypeParagraph),
		Paragraph:  notionapi.Paragraph{RichText: rt},
	}
}

func headingBlock(level int, rt []notionapi.RichText) notionapi.Block {
	h := notionapi.Heading{RichText: rt}
	switch level {
	case 1:
		return &notionapi.Heading1Block{BasicBlock: basic(notionapi.BlockTypeHeading1), Heading1: h}
	case 2:
		return &notionapi.Heading2Block{BasicBlock: basic(notionapi.BlockTypeHeading2), Heading2: h}
	default:
		return &notionapi.Heading3Block{BasicBlock: basic(notionapi.BlockTypeHeading3), Heading3: h}
	}
}

func listItemBlock(ordered bool, rt []notionapi.RichText, children []notionapi.Block) notionapi.Block {
	item := notionapi.ListItem{RichText: rt}
	if len(children) > 0 {
		item.Children = children
	}
	if ordered {
		return &notionapi.NumberedListItemBlock{
			BasicBlock:       basic(notionapi.BlockTypeNumberedListItem),
			NumberedListItem: item,
		}
	}
	return &notionapi.BulletedListItemBlock{
		BasicBlock:       basic(notionapi.BlockTypeBulletedListItem),
		BulletedListItem: item,
	}
}

func quoteBlock(rt []notionapi.RichText) notionapi.Block {
	return &notionapi.QuoteBlock{
		BasicBlock: basic(notionapi.BlockTypeQuote),
		Quote:      notionapi.Quote{RichText: rt},
	}
}

func codeBlock(rt []notionapi.RichText, language string) notionapi.Block {
	return &notionapi.CodeBlock{
		BasicBlock: basic(notionapi.BlockTypeCode),
		Code:       notionapi.Code{RichText: rt, Language: language},
	}
}

func dividerBlock() notionapi.Block {
	return &notionapi.DividerBlock{
		BasicBlock: basic(notionapi.BlockTypeDivider),
		Divider:    notionapi.Divider{},
	}
}

func imageBlock(url string, caption []notionapi.RichText) notionapi.Block {
	return &notionapi.ImageBlock{
		BasicBlock: basic(notionapi.BlockTypeImage),
		Image: notionapi.Image{
			Type:     notionapi.FileTypeExternal,
			External: &notionapi.FileObject{URL: url},
			Caption:  caption,
		},
	}
}

func videoBlock(url string, caption []notionapi.RichText) notionapi.Block {
	return &notionapi.VideoBlock{
		BasicBlock: basic(notionapi.BlockTypeVideo),
		Video: notionapi.Video{
			Type:     notionapi.FileTypeExternal,
			External: &notionapi.FileObject{URL: url},
			Caption:  caption,
		},
	}
}

func embedBlock(url string, caption []notionapi.RichText) notionapi.Block {
	return &notionapi.EmbedBlock{
		BasicBlock: basic(notionapi.BlockTypeEmbed),
		Embed:      notionapi.Embed{URL: url, Caption: caption},
	}
}

func toggleBlock(rt []notionapi.RichText, children []notionapi.Block) notionapi.Block {
	toggle := notionapi.Toggle{RichText: rt}
	if len(children) > 0 {
		toggle.Children = children
	}
	return &notionapi.ToggleBlock{
		BasicBlock: basic(notionapi.BlockTypeToggle),
		Toggle:     toggle,
	}
}

func calloutBlock(rt []notionapi.RichText, emoji string) notionapi.Block {
	callout := notionapi.Callout{RichText: rt}
	if emoji != "" {
		e := notionapi.Emoji(emoji)
		callout.Icon = &notionapi.Icon{Type: "emoji", Emoji: &e}
	}
	return &notionapi.CalloutBlock{
		BasicBlock: basic(notionapi.BlockTypeCallout),
		Callout:    callout,
	}
}

// PlainText concatenates the content of a rich text sequence.
func PlainText(rt []notionapi.RichText) string {
	var n int
	for _, r := range rt {
		if r.Text != nil {
			n += len(r.Text.Content)
		}
	}
	buf := make([]byte, 0, n)
	for _, r := range rt {
		if r.Text != nil {
			buf = append(buf, r.Text.Content...)
		}
	}
	return string(buf)
}

// BlockRichText returns the rich text carried by a text-bearing block, or nil.
func BlockRichText(b notionapi.Block) []notionapi.RichText {
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		return v.Paragraph.RichText
	case *notionapi.Heading1Block:
		return v.Heading1.RichText
	case *notionapi.Heading2Block:
		return v.Heading2.RichText
	case *notionapi.Heading3Block:
		return v.Heading3.RichText
	case *notionapi.BulletedListItemBlock:
		return v.BulletedListItem.RichText
	case *notionapi.NumberedListItemBlock:
		return v.NumberedListItem.RichText
	case *notionapi.QuoteBlock:
		return v.Quote.RichText
	case *notionapi.CodeBlock:
		return v.Code.RichText
	case *notionapi.ToggleBlock:
		return v.Toggle.RichText
	case *notionapi.CalloutBlock:
		return v.Callout.RichText
	}
	return nil
}

// BlockChildren returns nested children of list items and toggles.
func BlockChildren(b notionapi.Block) []notionapi.Block {
	switch v := b.(type) {
	case *notionapi.BulletedListItemBlock:
		return v.BulletedListItem.Children
	case *notionapi.NumberedListItemBlock:
		return v.NumberedListItem.Children
	case *notionapi.ToggleBlock:
		return v.Toggle.Children
	}
	return nil
}
