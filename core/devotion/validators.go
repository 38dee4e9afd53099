package devotion

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/arkofgod/ark/core"
)

var (
	videoURLTag  = "videourl"
	videoURLText = "YouTube URL is required for video devotions"

	textContentTag  = "textcontent"
	textContentText = "text content is required for text devotions"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		nd := sl.Current().Interface().(NewDevotion)
		switch nd.ContentType {
		case ContentVideo:
			if nd.YouTubeURL == "" {
				sl.ReportError(nd.YouTubeURL, "youtube_url", "YouTubeURL", videoURLTag, "")
			}
		case ContentText:
			if nd.TextContent == "" {
				sl.ReportError(nd.TextContent, "text_content", "TextContent", textContentTag, "")
			}
		}
	}, NewDevotion{})
	core.RegisterCustomTranslation(validate, translator, videoURLTag, videoURLText)
	core.RegisterCustomTranslation(validate, translator, textContentTag, textContentText)
}

func (nd *NewDevotion) Validate(validate *validator.Validate) error {
	nd.Clean()
	return validate.Struct(nd)
}
