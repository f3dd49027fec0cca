package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"code",
			"unit_id",
			"requester_id",
			"check_in",
			"check_out",
			"guest_count",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"code": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"unit_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"check_in": bson.M{
				"bsonType": "date",
			},

			"check_out": bson.M{
				"bsonType": "date",
			},

			"guest_count": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  50,
			},

			"guest": bson.M{
				"bsonType": "object",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"active",
					"cancelled",
					"completed",
					"rejected",
				},
			},

			"cancelled_by": bson.M{
				"bsonType": "string",
			},

			"cancellation_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"confirmed_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},

			"completed_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
