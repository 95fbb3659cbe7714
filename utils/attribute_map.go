package utils

// AttributeMap is a free-form set of attributes, as read from JSON.
type AttributeMap map[string]interface{}
