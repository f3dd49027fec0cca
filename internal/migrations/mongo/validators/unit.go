package validators

import "go.mongodb.org/mongo-driver/bson"

var UnitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"lessor_id",
			"title",
			"min_stay_days",
			"max_guests",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"lessor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"min_stay_days": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  365,
			},

			"max_stay_days": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  730,
			},

			"max_guests": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  50,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
