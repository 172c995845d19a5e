package dto

type CreateSessionRequest struct {
	// general | document
	Mode string `json:"mode" example:"general"`
}

type SelectModelRequest struct {
	ModelID string `json:"model_id" binding:"required" example:"allenai/molmo-2-8b:free"`
}

type SendMessageRequest struct {
	Message string `json:"message" example:"Summarize the introduction"`
}

type GenerateQARequest struct {
	// 0 이하이면 설정된 기본값을 사용한다.
	NumQuestions int `json:"num_questions" example:"5"`
}

type ResearchRequest struct {
	Query string `json:"query" example:"What methods are compared?"`
}

type TranslateRequest struct {
	TargetLanguage string `json:"target_language" example:"ko"`
}

type UploadResponseDTO struct {
	Message   string `json:"message" example:"PDF uploaded successfully"`
	SessionID string `json:"session_id"`
	Filename  string `json:"filename" example:"paper.pdf"`
	Pages     int    `json:"pages" example:"12"`
}
