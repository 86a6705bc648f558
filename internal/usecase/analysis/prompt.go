package analysis

import (
	"fmt"
	"strings"

	"github.com/uxlens/uxlens/internal/domain/analysis"
	"github.com/uxlens/uxlens/internal/domain/search"
)

// elementDetectionPrompt asks the vision model for a strict-JSON element
// inventory of the screenshot.
const elementDetectionPrompt = `Analyze the UI/UX design image and identify elements in the following JSON format:

{
  "elements": [
    {"type": "button", "confidence": 0.95, "description": "Primary button"},
    {"type": "text", "confidence": 0.90, "description": "Heading text"}
  ],
  "layout_type": "landing_page",
  "potential_issues": ["small_targets", "low_contrast"],
  "priorities": ["accessibility", "usability"]
}

Element types: button, form, input, nav, text, image, icon, card, modal
Issues: small_targets, low_contrast, crowded_layout, poor_hierarchy
Priorities: accessibility, usability, visual_design

Return only valid JSON without any additional text or explanation.`

// analysisOutputFormat is the Markdown skeleton the model is told to fill;
// the parser in parse.go reads exactly this structure back.
const analysisOutputFormat = `## 🔍 現状分析
[デザインの現状と主要な問題点を3-5点で簡潔に記述]

## 💡 改善提案（優先度順）

### 🔴 高優先度
**1. [改善項目名]**
- **問題**: [具体的な問題点]
- **根拠**: [該当するガイドライン名・原則]
- **改善案**: [具体的な解決策]
- **実装**: ` + "`[TailwindCSSクラス例]`" + `

### 🟡 中優先度
**1. [改善項目名]**
- **問題**: [具体的な問題点]
- **根拠**: [該当するガイドライン名・原則]
- **改善案**: [具体的な解決策]
- **実装**: ` + "`[TailwindCSSクラス例]`" + `

### 🟢 低優先度
**1. [改善項目名]**
- **問題**: [具体的な問題点]
- **根拠**: [該当するガイドライン名・原則]
- **改善案**: [具体的な解決策]
- **実装**: ` + "`[TailwindCSSクラス例]`" + `

## 💻 実装例

` + "```html" + `
<!-- 改善後のHTMLコード例 -->
` + "```" + `

## 📊 改善効果予測
- **アクセシビリティスコア**: [現在] → [改善後] (予測)
- **ユーザビリティ向上**: [期待される効果]
- **コンバージョン影響**: [予想される影響]`

// comprehensivePrompt builds the full analysis instruction from the user
// request, the detected elements and the retrieved guidelines.
func comprehensivePrompt(
	userPrompt string, elements []analysis.UIElement, guidelines []search.Result,
) string {
	var elementLines []string
	for _, el := range elements {
		elementLines = append(elementLines,
			fmt.Sprintf("- %s (信頼度: %.2f)", el.Type, el.Confidence))
	}

	return fmt.Sprintf(`あなたはUI/UXデザインの専門家です。アップロードされた画像を総合的に分析し、具体的な改善提案を行ってください。

【ユーザーの質問・要望】
%s

【検出されたUI要素】
%s

【参考ガイドライン】
%s

【出力形式】
以下のMarkdown形式で回答してください：

%s

【回答の指針】
1. 各改善提案は具体的で実装可能な内容にする
2. ガイドライン名を明記し根拠を明確にする
3. TailwindCSSクラスは実際に使用可能なものを記載する
4. 優先度は影響度とアクセシビリティの観点から判断する
5. 日本語で分かりやすく説明する`,
		userPrompt,
		strings.Join(elementLines, "\n"),
		formatGuidelines(guidelines),
		analysisOutputFormat,
	)
}

// quickPrompt builds the short-form instruction used in batch mode. Only the
// top three guidelines are cited.
func quickPrompt(userPrompt string, guidelines []search.Result) string {
	if len(guidelines) > 3 {
		guidelines = guidelines[:3]
	}
	return fmt.Sprintf(`アップロードされた画像を簡易分析し、主要な改善点を3つ以内で提案してください。

【質問】: %s

【参考ガイドライン】
%s

【出力形式】
## 主要改善点

1. **[問題点]**: [具体的な改善策]
2. **[問題点]**: [具体的な改善策]
3. **[問題点]**: [具体的な改善策]

各改善点は1-2行で簡潔に記述してください。`,
		userPrompt, formatGuidelines(guidelines))
}

// formatGuidelines renders retrieved guidelines as a numbered citation list.
func formatGuidelines(guidelines []search.Result) string {
	if len(guidelines) == 0 {
		return "関連するガイドラインが見つかりませんでした。一般的なベストプラクティスに基づいて分析してください。"
	}
	var b strings.Builder
	for i, g := range guidelines {
		fmt.Fprintf(&b, "%d. **%s** (%s)\n   %s\n   [関連度: %.1f%%]\n",
			i+1, g.Source, g.Category, g.Content, g.CombinedScore*100)
	}
	return b.String()
}

// optimizePromptForTokenLimit trims a prompt that would blow the model's
// input budget, estimating four characters per token. The guideline block is
// the first thing sacrificed.
func optimizePromptForTokenLimit(prompt string, maxTokens int) string {
	estimated := (len(prompt) + 3) / 4
	if estimated <= maxTokens {
		return prompt
	}

	targetLength := int(float64(maxTokens) * 4 * 0.9)

	sections := strings.Split(prompt, "\n\n")
	var kept []string
	for _, s := range sections {
		if strings.Contains(s, "【ユーザーの質問・要望】") ||
			strings.Contains(s, "【検出されたUI要素】") ||
			strings.Contains(s, "【出力形式】") {
			kept = append(kept, s)
		}
	}
	optimized := strings.Join(kept, "\n\n")

	if len(optimized) > targetLength {
		if at := strings.Index(optimized, "【参考ガイドライン】"); at >= 0 {
			end := strings.Index(optimized[at:], "【出力形式】")
			if end > 0 {
				optimized = optimized[:at] +
					"【参考ガイドライン】\n関連するベストプラクティスを参考に分析してください。\n\n" +
					optimized[at+end:]
			}
		}
	}
	return optimized
}
