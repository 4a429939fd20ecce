package bedrock

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/toolmap"
)

// convertBlocks renders canonical content blocks into Converse content
// blocks. Tool names go through the alias map; thinking blocks are dropped
// because the upstream only accepts reasoning it signed itself.
func convertBlocks(blocks []relaymodel.ContentBlock, names *toolmap.Map) ([]types.ContentBlock, error) {
	out := make([]types.ContentBlock, 0, len(blocks))
	for i, block := range blocks {
		switch block.Kind {
		case relaymodel.BlockText:
			if block.Text == "" {
				continue
			}
			out = append(out, &types.ContentBlockMemberText{Value: block.Text})

		case relaymodel.BlockImage:
			format, err := imageFormat(block.MediaType)
			if err != nil {
				return nil, errors.Wrapf(err, "content block %d", i)
			}
			out = append(out, &types.ContentBlockMemberImage{Value: types.ImageBlock{
				Format: format,
				Source: &types.ImageSourceMemberBytes{Value: block.Data},
			}})

		case relaymodel.BlockDocument:
			format, err := documentFormat(block.Format)
			if err != nil {
				return nil, errors.Wrapf(err, "content block %d", i)
			}
			name := block.Name
			if name == "" {
				name = "document"
			}
			out = append(out, &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
				Format: format,
				Name:   aws.String(name),
				Source: &types.DocumentSourceMemberBytes{Value: block.Data},
			}})

		case relaymodel.BlockToolUse:
			input, err := toolInputDocument(block.InputJSON)
			if err != nil {
				return nil, errors.Wrapf(err, "content block %d: tool input", i)
			}
			out = append(out, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String(block.ToolUseID),
				Name:      aws.String(names.Alias(block.ToolName)),
				Input:     input,
			}})

		case relaymodel.BlockToolResult:
			result, err := convertToolResult(block)
			if err != nil {
				return nil, errors.Wrapf(err, "content block %d", i)
			}
			out = append(out, result)

		case relaymodel.BlockThinking:
			continue

		default:
			return nil, errors.Errorf("content block %d: unsupported kind %q", i, block.Kind)
		}
	}
	return out, nil
}

// convertToolResult renders a canonical tool_result. Nested blocks keep their
// order; images are allowed because Converse accepts them inside results.
func convertToolResult(block relaymodel.ContentBlock) (*types.ContentBlockMemberToolResult, error) {
	content := make([]types.ToolResultContentBlock, 0, len(block.Nested))
	for i, nested := range block.Nested {
		switch nested.Kind {
		case relaymodel.BlockText:
			content = append(content, &types.ToolResultContentBlockMemberText{Value: nested.Text})
		case relaymodel.BlockImage:
			format, err := imageFormat(nested.MediaType)
			if err != nil {
				return nil, errors.Wrapf(err, "tool result block %d", i)
			}
			content = append(content, &types.ToolResultContentBlockMemberImage{Value: types.ImageBlock{
				Format: format,
				Source: &types.ImageSourceMemberBytes{Value: nested.Data},
			}})
		default:
			return nil, errors.Errorf("tool result block %d: unsupported kind %q", i, nested.Kind)
		}
	}

	status := types.ToolResultStatusSuccess
	if block.IsError {
		status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
		ToolUseId: aws.String(block.ToolUseID),
		Content:   content,
		Status:    status,
	}}, nil
}

// toolInputDocument parses tool invocation JSON into the document form the
// SDK serializes. Empty input becomes an empty object, which the upstream
// requires over null.
func toolInputDocument(raw json.RawMessage) (document.Interface, error) {
	if len(raw) == 0 {
		return document.NewLazyDocument(map[string]any{}), nil
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.Wrap(err, "unmarshal tool input")
	}
	if input == nil {
		input = map[string]any{}
	}
	return document.NewLazyDocument(input), nil
}

// documentJSON extracts the raw JSON from an SDK document, for the reverse
// direction.
func documentJSON(doc document.Interface) (json.RawMessage, error) {
	if doc == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil, errors.Wrap(err, "marshal tool input document")
	}
	return json.RawMessage(raw), nil
}

func imageFormat(mediaType string) (types.ImageFormat, error) {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return types.ImageFormatPng, nil
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, nil
	case "image/gif":
		return types.ImageFormatGif, nil
	case "image/webp":
		return types.ImageFormatWebp, nil
	}
	return "", errors.Errorf("unsupported image media type %q", mediaType)
}

func documentFormat(format string) (types.DocumentFormat, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return types.DocumentFormatPdf, nil
	case "csv":
		return types.DocumentFormatCsv, nil
	case "doc":
		return types.DocumentFormatDoc, nil
	case "docx":
		return types.DocumentFormatDocx, nil
	case "xls":
		return types.DocumentFormatXls, nil
	case "xlsx":
		return types.DocumentFormatXlsx, nil
	case "html":
		return types.DocumentFormatHtml, nil
	case "txt", "text":
		return types.DocumentFormatTxt, nil
	case "md", "markdown":
		return types.DocumentFormatMd, nil
	}
	return "", errors.Errorf("unsupported document format %q", format)
}
